package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/meikuraledutech/rbd"
	"github.com/meikuraledutech/rbd/memory"
	"github.com/meikuraledutech/rbd/postgres"
)

func main() {
	ctx := context.Background()

	// Postgres when DATABASE_URL is set, otherwise an in-memory store.
	var store rbd.Store
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		pool, err := postgres.Connect(ctx, dbURL, 4)
		if err != nil {
			log.Fatalf("connect: %v", err)
		}
		defer pool.Close()
		store = postgres.New(pool)
	} else {
		store = memory.New()
	}

	// 1. Create tables
	if err := store.CreateSchema(ctx); err != nil {
		log.Fatalf("schema: %v", err)
	}
	fmt.Println("schema created")

	// ── Build: A and B in series, in parallel with C ─────────────────
	d := rbd.NewDiagram("pump-station")
	must(d.AddNode("n1"))
	must(d.AddComponent("A", 0.1))
	must(d.AddComponent("B", 0.2))
	must(d.AddComponent("C", 0.05))
	for _, c := range []struct{ from, to, comp string }{
		{rbd.Source, "n1", "A"},
		{"n1", rbd.Sink, "B"},
		{rbd.Source, rbd.Sink, "C"},
	} {
		if _, err := d.Connect(c.from, c.to, c.comp); err != nil {
			log.Fatalf("connect %s: %v", c.comp, err)
		}
	}

	saved, err := store.SaveDiagram(ctx, d)
	if err != nil {
		log.Fatalf("save diagram: %v", err)
	}
	fmt.Println("diagram saved")
	printJSON(saved)

	// ── Retrieve and analyse ─────────────────────────────────────────
	got, err := store.GetDiagram(ctx, saved.ID)
	if err != nil {
		log.Fatalf("get diagram: %v", err)
	}

	analyzer := rbd.NewAnalyzer()
	result, err := analyzer.Analyze(ctx, got)
	if err != nil {
		log.Fatalf("analyze: %v", err)
	}
	fmt.Println()
	if err := rbd.WriteReport(os.Stdout, result); err != nil {
		log.Fatalf("report: %v", err)
	}

	// ── Granular: make C less reliable and re-run ────────────────────
	if err := store.UpdateComponent(ctx, saved.ID, &rbd.Component{Name: "C", FailureProbability: 0.5}); err != nil {
		log.Fatalf("update component: %v", err)
	}
	got, err = store.GetDiagram(ctx, saved.ID)
	if err != nil {
		log.Fatalf("get diagram: %v", err)
	}
	result, err = analyzer.Analyze(ctx, got)
	if err != nil {
		log.Fatalf("analyze: %v", err)
	}
	fmt.Printf("\nwith qC = 0.5: R = %.12f\n", result.Reliability)
	printJSON(result.Contributions)

	// ── Cleanup ───────────────────────────────────────────────────────
	if err := store.DeleteDiagram(ctx, saved.ID); err != nil {
		log.Fatalf("delete: %v", err)
	}
	fmt.Println("\ndiagram deleted")
}

func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}

func printJSON(v any) {
	out, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(out))
}
