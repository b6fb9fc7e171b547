package table

const (
	DefaultForumTableName = "Pairent"

	PartitionKeyName = "PK"
	SortKeyName      = "SK"
	TTLKeyName       = "ttl"

	IndexPopular                = "popular"
	IndexNew                    = "new"
	IndexAuthor                 = "author"
	IndexFriendRequestsBySender = "FriendRequestsBySender"
)

// Forum returns the single-table layout shared by questions, profiles and
// breakrooms. Changing it without a migration breaks existing items.
func Forum(name string) TableDefinition {
	if name == "" {
		name = DefaultForumTableName
	}
	return TableDefinition{
		Name: name,
		KeyDefinitions: PrimaryKeyDefinition{
			PartitionKey: KeyDef{Name: PartitionKeyName, Kind: KeyKindS},
			SortKey:      KeyDef{Name: SortKeyName, Kind: KeyKindS},
		},
		TimeToLiveKey: TTLKeyName,
		GSIs: []GSIDefinition{
			gsi(IndexPopular, "gsi", KeyKindS, "likes", KeyKindN),
			gsi(IndexNew, "gsi", KeyKindS, "date", KeyKindS),
			gsi(IndexAuthor, "author", KeyKindS, "date", KeyKindS),
			gsi(IndexFriendRequestsBySender, "sender_id", KeyKindS, "date", KeyKindS),
		},
	}
}

func gsi(name, pk string, pkKind KeyKind, sk string, skKind KeyKind) GSIDefinition {
	return GSIDefinition{
		Name: name,
		KeyDefinitions: PrimaryKeyDefinition{
			PartitionKey: KeyDef{Name: pk, Kind: pkKind},
			SortKey:      KeyDef{Name: sk, Kind: skKind},
		},
	}
}
