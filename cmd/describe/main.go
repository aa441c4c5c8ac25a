// describe adds AI-generated descriptions to the JSON sidecars of pictures that have none.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"

	"k8s.io/klog/v2"

	"github.com/tstromberg/distiller/pkg/collection"
	"github.com/tstromberg/distiller/pkg/config"
	"github.com/tstromberg/distiller/pkg/describe"
)

var (
	configPath = flag.String("config", "", "path to a YAML config file")
	dryRun     = flag.Bool("n", false, "dry-run mode, don't write sidecars")
	overwrite  = flag.Bool("o", false, "overwrite existing descriptions")
	model      = flag.String("model", "", "model name (overrides config)")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		klog.Exitf("config: %v", err)
	}

	dirs := flag.Args()
	if len(dirs) == 0 && cfg.Source.Dir != "" {
		dirs = []string{cfg.Source.Dir}
	}
	if len(dirs) == 0 {
		klog.Exitf("No input directories provided. Usage: %s [-n] [-o] <input_dir1> [input_dir2 ...]", os.Args[0])
	}

	apiKey := cfg.Describe.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("GOOGLE_AI_API_KEY")
	}
	if *model != "" {
		cfg.Describe.Model = *model
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	d, err := describe.New(ctx, apiKey, cfg.Describe.Model)
	if err != nil {
		klog.Exitf("describe: %v", err)
	}

	var total describe.Result
	for _, dir := range dirs {
		klog.Infof("scanning %s ...", dir)
		root, err := collection.Scan(dir, collection.ScanOptions{})
		if err != nil {
			klog.Exitf("scan %s: %v", dir, err)
		}
		res, err := d.Fill(ctx, root, describe.Options{Overwrite: *overwrite, DryRun: *dryRun})
		total.Described += res.Described
		total.Skipped += res.Skipped
		total.Failed += res.Failed
		if err != nil {
			klog.Errorf("%s: %v", dir, err)
		}
		if ctx.Err() != nil {
			break
		}
	}

	klog.Infof("describe completed: %d described, %d skipped, %d failed", total.Described, total.Skipped, total.Failed)
	if total.Failed > 0 {
		os.Exit(1)
	}
}
