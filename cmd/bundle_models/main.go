// Command bundle_models packs model artifacts into a single SQLite bundle.
//
//	bundle_models -out models/bundle.db -revenue models/regression_model.json \
//	    -purchase models/classification_model.json -segment models/clustering_model.json
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"custanalytics/db"
	"custanalytics/ml"
)

func main() {
	out := flag.String("out", "./models/bundle.db", "bundle output path")
	revenue := flag.String("revenue", "", "revenue model artifact")
	purchase := flag.String("purchase", "", "purchase model artifact")
	segment := flag.String("segment", "", "segment model artifact")
	list := flag.Bool("list", false, "list the bundle contents and exit")
	flag.Parse()

	if *list {
		if err := listBundle(*out); err != nil {
			log.Fatalf("failed to list bundle: %v", err)
		}
		return
	}

	sources := map[ml.Task]string{
		ml.TaskRevenue:  *revenue,
		ml.TaskPurchase: *purchase,
		ml.TaskSegment:  *segment,
	}
	if *revenue == "" && *purchase == "" && *segment == "" {
		log.Fatal("at least one of -revenue, -purchase or -segment is required")
	}

	bundle, err := db.CreateBundle(*out)
	if err != nil {
		log.Fatalf("failed to create bundle: %v", err)
	}
	defer bundle.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	for _, task := range ml.Tasks() {
		path := sources[task]
		if path == "" {
			continue
		}
		payload, err := os.ReadFile(path)
		if err != nil {
			log.Fatalf("failed to read %s: %v", path, err)
		}
		if err := bundle.PutArtifact(ctx, task, payload); err != nil {
			log.Fatalf("failed to store %s model: %v", task, err)
		}
		log.Printf("stored %s model from %s", task, path)
	}

	fmt.Printf("bundle written to %s\n", *out)
}

func listBundle(path string) error {
	bundle, err := db.OpenBundle(path)
	if err != nil {
		return err
	}
	defer bundle.Close()

	infos, err := bundle.List(context.Background())
	if err != nil {
		return err
	}
	for _, info := range infos {
		fmt.Printf("%-10s %-22s %8d bytes  %s\n", info.Task, info.Kind, info.Size, info.CreatedAt.Format(time.RFC3339))
	}
	return nil
}
