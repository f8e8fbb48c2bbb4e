package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/parquedb/parquedb/engine"
	"github.com/parquedb/parquedb/entity"
)

func cmdCreate(fs *flag.FlagSet, configFile *string, args []string) error {
	ns := fs.String("ns", "", "namespace to create in")
	data := fs.String("data", "{}", "JSON document to create")
	actor := fs.String("actor", "cli", "actor recorded on the created event")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *ns == "" {
		return fmt.Errorf("-ns is required")
	}
	var doc map[string]any
	if err := json.Unmarshal([]byte(*data), &doc); err != nil {
		return fmt.Errorf("parse -data: %w", err)
	}

	e, closeFn, err := openEngine(*configFile)
	if err != nil {
		return err
	}
	defer closeFn()

	ent, err := e.Create(bgCtx(), *ns, doc, engine.CreateOptions{Actor: *actor})
	if err != nil {
		return err
	}
	printEntities([]*entity.Entity{ent})
	return nil
}

func cmdGet(fs *flag.FlagSet, configFile *string, args []string) error {
	ns := fs.String("ns", "", "namespace")
	id := fs.String("id", "", "entity id (ns/local or bare local id)")
	includeDeleted := fs.Bool("includeDeleted", false, "include soft-deleted entities")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *ns == "" || *id == "" {
		return fmt.Errorf("-ns and -id are required")
	}

	e, closeFn, err := openEngine(*configFile)
	if err != nil {
		return err
	}
	defer closeFn()

	fullID := qualifyID(*ns, *id)
	ent, err := e.Get(bgCtx(), *ns, fullID, engine.GetOptions{IncludeDeleted: *includeDeleted})
	if err != nil {
		return err
	}
	if ent == nil {
		fmt.Println("not found")
		return nil
	}
	printEntities([]*entity.Entity{ent})
	return nil
}

func cmdFind(fs *flag.FlagSet, configFile *string, args []string) error {
	ns := fs.String("ns", "", "namespace")
	filterJSON := fs.String("filter", "{}", "JSON filter")
	limit := fs.Int("limit", 20, "maximum rows returned")
	sortField := fs.String("sort", "$id", "sort field, optionally suffixed :desc")
	includeDeleted := fs.Bool("includeDeleted", false, "include soft-deleted entities")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *ns == "" {
		return fmt.Errorf("-ns is required")
	}
	var filter engine.Filter
	if err := json.Unmarshal([]byte(*filterJSON), &filter); err != nil {
		return fmt.Errorf("parse -filter: %w", err)
	}

	e, closeFn, err := openEngine(*configFile)
	if err != nil {
		return err
	}
	defer closeFn()

	field, desc := parseSortFlag(*sortField)
	res, err := e.Find(bgCtx(), *ns, filter, engine.FindOptions{
		Limit:          *limit,
		Sort:           []engine.SortField{{Field: field, Desc: desc}},
		IncludeDeleted: *includeDeleted,
	})
	if err != nil {
		return err
	}
	printEntities(res.Items)
	if res.HasMore {
		fmt.Println("more results available, cursor:", res.NextCursor)
	}
	return nil
}

func cmdHistory(fs *flag.FlagSet, configFile *string, args []string) error {
	ns := fs.String("ns", "", "namespace")
	id := fs.String("id", "", "entity id")
	limit := fs.Int("limit", 100, "maximum events returned")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *ns == "" || *id == "" {
		return fmt.Errorf("-ns and -id are required")
	}

	e, closeFn, err := openEngine(*configFile)
	if err != nil {
		return err
	}
	defer closeFn()

	entries, err := e.GetHistory(bgCtx(), *ns, qualifyID(*ns, *id), engine.HistoryOptions{Limit: *limit})
	if err != nil {
		return err
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header([]string{"seq", "op", "ts", "actor"})
	for _, h := range entries {
		table.Append([]string{
			strconv.FormatInt(h.Seq, 10),
			h.Op,
			h.TS.Format(time.RFC3339),
			h.Actor,
		})
	}
	table.Render()
	return nil
}

func cmdCompact(fs *flag.FlagSet, configFile *string, args []string) error {
	ns := fs.String("ns", "", "namespace to compact")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *ns == "" {
		return fmt.Errorf("-ns is required")
	}

	e, closeFn, err := openEngine(*configFile)
	if err != nil {
		return err
	}
	defer closeFn()

	res, err := e.Compact(bgCtx(), *ns)
	if err != nil {
		return err
	}
	fmt.Printf("namespace=%s compacted=%v absorbedPending=%d rowCount=%d\n",
		res.Namespace, res.Compacted, res.AbsorbedPending, res.RowCount)
	return nil
}

func cmdHealth(fs *flag.FlagSet, configFile *string, args []string) error {
	ns := fs.String("ns", "", "namespace to report on")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *ns == "" {
		return fmt.Errorf("-ns is required")
	}

	e, closeFn, err := openEngine(*configFile)
	if err != nil {
		return err
	}
	defer closeFn()

	h, err := e.Health(bgCtx(), *ns)
	if err != nil {
		return err
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header([]string{"field", "value"})
	table.Append([]string{"namespace", h.Namespace})
	table.Append([]string{"status", h.Status})
	table.Append([]string{"totalPendingFiles", strconv.Itoa(h.TotalPendingFiles)})
	table.Append([]string{"totalActiveWindows", strconv.Itoa(h.TotalActiveWindows)})
	table.Append([]string{"oldestWindowAgeMs", strconv.FormatInt(h.OldestWindowAgeMs, 10)})
	table.Append([]string{"windowsStuckInProcessing", strconv.Itoa(h.WindowsStuckInProcessing)})
	table.Render()
	return nil
}

func printEntities(items []*entity.Entity) {
	table := tablewriter.NewWriter(os.Stdout)
	table.Header([]string{"$id", "$type", "version", "updatedAt", "data"})
	for _, e := range items {
		data, _ := json.Marshal(e.Fields)
		table.Append([]string{
			e.ID,
			e.Type,
			strconv.FormatInt(e.Version, 10),
			e.UpdatedAt.Format(time.RFC3339),
			string(data),
		})
	}
	table.Render()
}

// qualifyID accepts either a full "ns/localId" id or a bare local id,
// prefixing ns when the caller passed the latter.
func qualifyID(ns, id string) string {
	if strings.Contains(id, "/") {
		return id
	}
	return ns + "/" + id
}

// parseSortFlag splits a "field" or "field:desc" sort flag.
func parseSortFlag(s string) (field string, desc bool) {
	if f, dir, ok := strings.Cut(s, ":"); ok {
		return f, dir == "desc"
	}
	return s, false
}
