package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/unkn0wn-root/segcache/accounts"
	c "github.com/unkn0wn-root/segcache/codec"
	"github.com/unkn0wn-root/segcache/collection"
)

func keyCmd(g *globals) *cobra.Command {
	var (
		q      collection.ListQuery
		entity int64
		count  bool
	)
	cmd := &cobra.Command{
		Use:   "key",
		Short: "Print the cache key for an entity or a list query",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := g.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close(cmd.Context())

			var key string
			switch {
			case entity > 0:
				key = s.cache.GenerateEntityKey(entity)
			case count:
				key = s.cache.GenerateCountKey(q)
			default:
				key = s.cache.GenerateListKey(q)
			}
			fmt.Fprintln(cmd.OutOrStdout(), key)
			return nil
		},
	}
	cmd.Flags().Int64Var(&entity, "entity", 0, "Entity id (prints entity key)")
	cmd.Flags().BoolVar(&count, "count", false, "Print the count key instead of the list key")
	cmd.Flags().StringVar(&q.Status, "status", "", "Status filter")
	cmd.Flags().StringVar(&q.Search, "search", "", "Search filter")
	cmd.Flags().StringVar(&q.AreaID, "area", "", "Area filter")
	cmd.Flags().IntVar(&q.Page, "page", 0, "Page (default 1)")
	cmd.Flags().IntVar(&q.PageSize, "page-size", 0, "Page size (default from config)")
	return cmd
}

func getCmd(g *globals) *cobra.Command {
	var raw bool
	cmd := &cobra.Command{
		Use:   "get <key>",
		Short: "Read one entry and print it as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := g.open(ctx)
			if err != nil {
				return err
			}
			defer s.Close(ctx)
			if err := s.requireShared(); err != nil {
				return err
			}

			key := args[0]
			b, ok := s.svc.GetByKey(ctx, key)
			if !ok {
				return fmt.Errorf("%s: not cached", key)
			}
			if raw {
				_, err := cmd.OutOrStdout().Write(b)
				return err
			}
			v, err := decodeEntry(key, b)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(v)
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "Write the payload bytes unchanged")
	return cmd
}

// decodeEntry picks the codec by key shape. Search terms may contain ':',
// so list keys have at least four separators rather than exactly four.
func decodeEntry(key string, b []byte) (any, error) {
	switch {
	case strings.HasPrefix(key, "entity:"):
		return accounts.EntityCodec().Decode(b)
	case strings.HasPrefix(key, "count:"):
		return c.JSON[int64]{}.Decode(b)
	case strings.Count(key, ":") >= 4:
		return accounts.ListCodec().Decode(b)
	default:
		return c.String{}.Decode(b)
	}
}

func invalidateCmd(g *globals) *cobra.Command {
	var lists bool
	var statuses []string
	cmd := &cobra.Command{
		Use:   "invalidate",
		Short: "Drop every key in the segment, or only list views with --lists",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			s, err := g.open(ctx)
			if err != nil {
				return err
			}
			defer s.Close(ctx)
			if err := s.requireShared(); err != nil {
				return err
			}

			if lists {
				s.cache.InvalidateLists(ctx, statuses...)
				fmt.Fprintf(cmd.OutOrStdout(), "list views dropped in segment %q\n", s.svc.Segment())
				return nil
			}
			n, ok := s.svc.DropPattern(ctx, "*")
			if !ok {
				return fmt.Errorf("segment %q: pattern delete failed", s.svc.Segment())
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d keys dropped in segment %q\n", n, s.svc.Segment())
			return nil
		},
	}
	cmd.Flags().BoolVar(&lists, "lists", false, "Only drop list and count keys")
	cmd.Flags().StringSliceVar(&statuses, "status", nil, "Extra status partitions to drop eagerly (with --lists)")
	return cmd
}
