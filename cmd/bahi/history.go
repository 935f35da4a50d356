package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/hurttlocker/bahi/internal/export"
	"github.com/hurttlocker/bahi/internal/ledger"
	"github.com/hurttlocker/bahi/internal/store"
)

// parseLimit reads "--limit N" or "--limit=N", validating 1..upper.
func parseLimit(arg string, args []string, i *int, limit *int, upper int) (bool, error) {
	var raw string
	switch {
	case arg == "--limit" && *i+1 < len(args):
		*i++
		raw = args[*i]
	case strings.HasPrefix(arg, "--limit="):
		raw = strings.TrimPrefix(arg, "--limit=")
	default:
		return false, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > upper {
		return true, fmt.Errorf("--limit must be between 1 and %d", upper)
	}
	*limit = n
	return true, nil
}

func runRuns(args []string) error {
	if len(args) > 0 {
		switch args[0] {
		case "show":
			return runRunsShow(args[1:])
		case "delete":
			return runRunsDelete(args[1:])
		}
	}

	limit := 20
	asJSON := false
	for i := 0; i < len(args); i++ {
		ok, err := parseLimit(args[i], args, &i, &limit, 1000)
		if err != nil {
			return err
		}
		switch {
		case ok:
		case args[i] == "--json":
			asJSON = true
		case strings.HasPrefix(args[i], "-"):
			return fmt.Errorf("unknown flag: %s", args[i])
		default:
			return fmt.Errorf("unexpected argument: %s", args[i])
		}
	}

	cfg, err := resolveConfig()
	if err != nil {
		return err
	}
	s, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	runs, err := s.ListRuns(context.Background(), limit)
	if err != nil {
		return err
	}
	if asJSON {
		return printJSON(runs)
	}
	outputRunsTTY(runs)
	return nil
}

func outputRunsTTY(runs []*store.Run) {
	if len(runs) == 0 {
		fmt.Println("No saved runs.")
		return
	}
	for _, r := range runs {
		line := fmt.Sprintf("%s  %s  %4d records  %3d blocks", r.ID, r.CreatedAt.Local().Format("2006-01-02 15:04"), r.Records, r.Blocks)
		if r.Degraded > 0 {
			line += fmt.Sprintf("  (%d degraded)", r.Degraded)
		}
		if r.Source != "" {
			line += "  " + r.Source
		}
		fmt.Println(line)
	}
}

func runRunsShow(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: bahi runs show <id> [--format csv|json|xlsx] [--out file]")
	}
	id := args[0]
	format := export.FormatCSV
	out := ""
	rest := args[1:]
	for i := 0; i < len(rest); i++ {
		switch {
		case (rest[i] == "--format" || rest[i] == "-f") && i+1 < len(rest):
			i++
			f, err := export.ParseFormat(rest[i])
			if err != nil {
				return err
			}
			format = f
		case (rest[i] == "--out" || rest[i] == "-o") && i+1 < len(rest):
			i++
			out = rest[i]
		default:
			return fmt.Errorf("unknown flag: %s", rest[i])
		}
	}
	if format == export.FormatXLSX && out == "" {
		return fmt.Errorf("xlsx output needs --out <file>")
	}

	cfg, err := resolveConfig()
	if err != nil {
		return err
	}
	s, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := context.Background()
	run, err := s.GetRun(ctx, id)
	if err != nil {
		return err
	}
	if run == nil {
		return fmt.Errorf("run %s not found", id)
	}
	records, err := s.GetRecords(ctx, id)
	if err != nil {
		return err
	}

	w, closeOut, err := openOutput(out)
	if err != nil {
		return err
	}
	if err := export.Write(w, format, records); err != nil {
		closeOut()
		return err
	}
	return closeOut()
}

func runRunsDelete(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: bahi runs delete <id>")
	}
	cfg, err := resolveConfig()
	if err != nil {
		return err
	}
	s, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.DeleteRun(context.Background(), args[0]); err != nil {
		return err
	}
	fmt.Printf("Deleted run %s\n", args[0])
	return nil
}

func runSearch(args []string) error {
	limit := 50
	asJSON := false
	var terms []string
	for i := 0; i < len(args); i++ {
		ok, err := parseLimit(args[i], args, &i, &limit, 1000)
		if err != nil {
			return err
		}
		switch {
		case ok:
		case args[i] == "--json":
			asJSON = true
		case strings.HasPrefix(args[i], "-"):
			return fmt.Errorf("unknown flag: %s", args[i])
		default:
			terms = append(terms, args[i])
		}
	}
	query := strings.TrimSpace(strings.Join(terms, " "))
	if query == "" {
		return fmt.Errorf("usage: bahi search <query> [--limit N] [--json]")
	}

	cfg, err := resolveConfig()
	if err != nil {
		return err
	}
	s, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	hits, err := s.SearchRecords(context.Background(), query, limit)
	if err != nil {
		return err
	}
	if asJSON {
		if hits == nil {
			hits = []store.RecordHit{}
		}
		return printJSON(hits)
	}
	if len(hits) == 0 {
		fmt.Printf("No records match %q.\n", query)
		return nil
	}
	for _, h := range hits {
		r := h.Record
		fmt.Printf("%s #%d  %s  [%s, %s]  %s %s\n",
			shortID(h.RunID), r.Position, personName(r), r.Relation, r.Gender, r.CityVillage, r.District)
	}
	return nil
}

func personName(r ledger.IndividualRecord) string {
	name := strings.TrimSpace(r.GivenName + " " + r.Surname)
	if name == "" {
		return "(unnamed)"
	}
	return name
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func runStats(args []string) error {
	vacuum := false
	for _, arg := range args {
		switch {
		case arg == "--vacuum":
			vacuum = true
		case strings.HasPrefix(arg, "-"):
			return fmt.Errorf("unknown flag: %s", arg)
		default:
			return fmt.Errorf("unexpected argument: %s", arg)
		}
	}
	cfg, err := resolveConfig()
	if err != nil {
		return err
	}
	s, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := context.Background()
	if vacuum {
		if err := s.Vacuum(ctx); err != nil {
			return fmt.Errorf("vacuum: %w", err)
		}
	}
	stats, err := s.Stats(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Database: %s\n", cfg.DBPath.Value)
	fmt.Printf("Runs:     %d\n", stats.RunCount)
	fmt.Printf("Records:  %d\n", stats.RecordCount)
	fmt.Printf("Size:     %s\n", formatBytes(stats.DBSizeBytes))
	return nil
}

func runColumns(args []string) error {
	if len(args) > 0 && args[0] == "--json" {
		return printJSON(ledger.Header)
	}
	for i, h := range ledger.Header {
		fmt.Printf("%2d  %s\n", i+1, h)
	}
	return nil
}

func runConfig(args []string) error {
	if len(args) > 0 {
		return fmt.Errorf("unexpected argument: %s", args[0])
	}
	cfg, err := resolveConfig()
	if err != nil {
		return err
	}
	return printJSON(cfg)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(b)/float64(div), "KMGTPE"[exp])
}
