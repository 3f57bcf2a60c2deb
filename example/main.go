package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/meikuraledutech/workflow"
	"github.com/meikuraledutech/workflow/config"
	"github.com/meikuraledutech/workflow/execution"
	"github.com/meikuraledutech/workflow/graph"
	"github.com/meikuraledutech/workflow/remote"
)

// Runs an image generation workflow against the execution service named by
// WORKFLOW_REMOTE_URL. Pass an image path to attach it to the input node.
func main() {
	ctx := context.Background()
	cfg := config.MustLoadFromEnv()

	client := remote.New(cfg.RemoteURL, remote.WithTimeout(cfg.RemoteTimeout))
	if err := client.Health(ctx); err != nil {
		log.Fatalf("execution service: %v", err)
	}
	fmt.Println("execution service reachable at", client.BaseURL())

	sel := graph.NewSelection()
	store := graph.New(sel)

	// ── Build the graph ───────────────────────────────────────────────
	img, _ := store.AddNode(workflow.ImageInput)
	gen, _ := store.AddNode(workflow.GenerateImage)
	if _, ok := store.Connect(img.ID, "output_image", gen.ID, "input"); !ok {
		log.Fatal("connect: refused")
	}

	setPrompt := store.Bind(gen.ID)
	setPrompt(workflow.Patch{Prompt: workflow.String("a cat wearing a hat")})

	// ── Optional: upload an input image ───────────────────────────────
	if len(os.Args) > 1 {
		f, err := os.Open(os.Args[1])
		if err != nil {
			log.Fatalf("open image: %v", err)
		}
		n, err := execution.NewUploader(store, client, nil).Upload(ctx, img.ID, filepath.Base(os.Args[1]), f)
		f.Close()
		if err != nil {
			log.Fatalf("upload: %v", err)
		}
		fmt.Printf("uploaded %s\n", n.Data.ImagePath)
	}

	fmt.Println("\nrequest:")
	printJSON(workflow.Project(store.Snapshot()))

	// ── Execute ───────────────────────────────────────────────────────
	out := execution.New(store, sel, client).Execute(ctx)
	if out.Status != execution.Succeeded {
		log.Fatalf("execute: %s: %v", out.Status, out.Err)
	}
	fmt.Printf("\nupdated nodes: %v\n", out.Updated)

	result, _ := store.Node(gen.ID)
	fmt.Printf("resultImage: %d bytes\n", len(result.Data.ResultImage))
}

func printJSON(v any) {
	out, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(out))
}
