package main

import (
	"context"
	"encoding/base64"
	"strconv"

	"github.com/acksell/pairent/dynamodb/store"
	"github.com/acksell/pairent/forum/keys"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/spf13/cobra"
)

// kindAttribute is added to raw items printed by the inspect commands.
const kindAttribute = "_kind"

func itemsCmd(a *app) *cobra.Command {
	var (
		prefix string
		index  string
		limit  int
		all    bool
	)
	cmd := &cobra.Command{
		Use:   "items <partition>",
		Short: "Print the raw items of a partition, annotated with their kind",
		Args:  cobra.ExactArgs(1),
	}
	cmd.RunE = run(a, func(ctx context.Context, args []string) error {
		in := store.QueryInput{Index: index, Partition: args[0], Forward: true, Limit: limit, Consistent: index == ""}
		if prefix != "" {
			in.Sort = store.BeginsWith(prefix)
		}
		for {
			page, err := a.client.Query(ctx, in)
			if err != nil {
				return err
			}
			if err := a.emitRaw(page.Items); err != nil {
				return err
			}
			if !all || page.LastKey == nil {
				return nil
			}
			in.StartKey = page.LastKey
		}
	})
	cmd.Flags().StringVar(&prefix, "prefix", "", "sort key prefix")
	cmd.Flags().StringVar(&index, "index", "", "query a secondary index instead of the table")
	cmd.Flags().IntVar(&limit, "limit", 100, "items per page")
	cmd.Flags().BoolVar(&all, "all", false, "follow pages to the end of the partition")
	return cmd
}

func (a *app) emitRaw(items []store.Item) error {
	def := a.client.Table()
	for _, item := range items {
		out := itemToJSON(item)
		if k, err := store.KeyOf(def, item); err == nil {
			if kind, _, err := keys.DecodeKey(k); err == nil {
				out[kindAttribute] = string(kind)
			}
		}
		if err := a.emit(out); err != nil {
			return err
		}
	}
	return nil
}

func itemToJSON(item store.Item) map[string]any {
	out := make(map[string]any, len(item)+1)
	for name, av := range item {
		out[name] = attributeToJSON(av)
	}
	return out
}

// attributeToJSON flattens an attribute value. Binary values become
// base64 and numbers that fit an int64 stay integral.
func attributeToJSON(av types.AttributeValue) any {
	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		return v.Value
	case *types.AttributeValueMemberN:
		if i, err := strconv.ParseInt(v.Value, 10, 64); err == nil {
			return i
		}
		return v.Value
	case *types.AttributeValueMemberB:
		return base64.StdEncoding.EncodeToString(v.Value)
	case *types.AttributeValueMemberBOOL:
		return v.Value
	case *types.AttributeValueMemberNULL:
		return nil
	case *types.AttributeValueMemberL:
		list := make([]any, len(v.Value))
		for i, elem := range v.Value {
			list[i] = attributeToJSON(elem)
		}
		return list
	case *types.AttributeValueMemberM:
		m := make(map[string]any, len(v.Value))
		for k, elem := range v.Value {
			m[k] = attributeToJSON(elem)
		}
		return m
	case *types.AttributeValueMemberSS:
		return v.Value
	case *types.AttributeValueMemberNS:
		return v.Value
	case *types.AttributeValueMemberBS:
		list := make([]string, len(v.Value))
		for i, b := range v.Value {
			list[i] = base64.StdEncoding.EncodeToString(b)
		}
		return list
	default:
		return nil
	}
}
