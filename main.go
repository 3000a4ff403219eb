package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ept-io/go-ept/ept"
	"github.com/ept-io/go-ept/ept/lasio"
	_ "gocloud.dev/blob/s3blob"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var logger = log.New(os.Stdout, "", log.Ldate|log.Ltime|log.Lshortfile)

var rootCmd = &cobra.Command{
	Use:   "ept",
	Short: "Read paths over Entwine Point Tile (EPT) octree archives",
}

func main() {
	cobra.OnInitialize(initConfig)
	if err := rootCmd.Execute(); err != nil {
		logger.Fatal(err)
	}
}

func initConfig() {
	viper.SetEnvPrefix("EPT")
	viper.AutomaticEnv()
}

func init() {
	rootCmd.AddCommand(queryCmd, serveCmd)
}

var queryCmd = &cobra.Command{
	Use:   "query ADDRESS XMIN,YMIN,XMAX,YMAX",
	Short: "Run a single bounded read against an EPT archive and write a LAZ file",
	Args:  cobra.ExactArgs(2),
	RunE:  runQuery,
}

func init() {
	queryCmd.Flags().Float64("zmin", 0, "lower z bound (defaults to the archive's own bounds)")
	queryCmd.Flags().Float64("zmax", 0, "upper z bound (defaults to the archive's own bounds)")
	queryCmd.Flags().Bool("has-z", false, "treat --zmin/--zmax as authoritative instead of inheriting from the archive")
	queryCmd.Flags().Int("depth-begin", 0, "lower depth bound stored in the query's depth range (overlap selection does not filter on it)")
	queryCmd.Flags().Int("depth-end", -1, "maximum octree depth to descend to (-1 means unbounded)")
	queryCmd.Flags().IntP("concurrency", "c", ept.DefaultTileConcurrency, "maximum concurrent tile fetches")
	queryCmd.Flags().StringP("output", "o", "out.laz", "output LAZ file path")

	for _, name := range []string{"zmin", "zmax", "has-z", "depth-begin", "depth-end", "concurrency", "output"} {
		_ = viper.BindPFlag("query."+name, queryCmd.Flags().Lookup(name))
	}
}

func runQuery(cmd *cobra.Command, args []string) error {
	address := args[0]
	bbox := args[1]

	parts := strings.Split(bbox, ",")
	if len(parts) != 4 {
		return fmt.Errorf("bbox must be XMIN,YMIN,XMAX,YMAX, got %q", bbox)
	}
	coords := make([]float64, 4)
	for i, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return fmt.Errorf("invalid bbox coordinate %q: %w", p, err)
		}
		coords[i] = v
	}

	bounds2D, err := ept.NewBoundingBox2D(coords[0], coords[1], coords[2], coords[3])
	if err != nil {
		return err
	}

	depthBegin := viper.GetInt("query.depth-begin")
	depthEnd := viper.GetInt("query.depth-end")
	depthRange := ept.UnboundedDepthRange()
	if depthEnd >= 0 {
		depthRange = ept.NewDepthRange(depthBegin, depthEnd)
	} else if depthBegin > 0 {
		depthRange = ept.DepthRange{DepthBegin: depthBegin}
	}

	var params ept.QueryParams
	if viper.GetBool("query.has-z") {
		bounds3D, err := ept.NewBoundingBox3D(coords[0], coords[1], viper.GetFloat64("query.zmin"), coords[2], coords[3], viper.GetFloat64("query.zmax"))
		if err != nil {
			return err
		}
		params = ept.NewQueryParams3D(bounds3D, depthRange)
	} else {
		params = ept.NewQueryParams2D(bounds2D, depthRange)
	}

	ctx := context.Background()
	source, err := ept.OpenSource(ctx, address)
	if err != nil {
		return fmt.Errorf("failed to open source: %w", err)
	}
	defer source.Close()

	resource := ept.NewEPTResource(source, viper.GetInt("query.concurrency"))

	start := time.Now()
	pc, err := resource.Query(ctx, params)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}
	logger.Printf("queried %d points in %s", len(pc.Points), time.Since(start))

	out, err := lasio.Encode(pc, true)
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}

	outputPath := viper.GetString("query.output")
	if err := os.WriteFile(outputPath, out, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", outputPath, err)
	}
	logger.Printf("wrote %s (%d bytes)", outputPath, len(out))
	return nil
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the /info and /read HTTP facade over EPT archives",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntP("port", "p", 8080, "port to serve on")
	serveCmd.Flags().String("cors", "", "CORS allowed origin value")
	serveCmd.Flags().IntP("concurrency", "c", ept.DefaultTileConcurrency, "maximum concurrent tile fetches per query")
	serveCmd.Flags().String("root-template", "", "printf template (one %s for dataset name) resolving a dataset to its EPT root address")
	serveCmd.Flags().Duration("idle-window", ept.DefaultIdleWindow, "evict a resource from the registry after this much idle time")
	serveCmd.Flags().Duration("sweep-interval", ept.DefaultSweepInterval, "how often the registry is swept for idle resources")

	for _, name := range []string{"port", "cors", "concurrency", "root-template", "idle-window", "sweep-interval"} {
		_ = viper.BindPFlag("serve."+name, serveCmd.Flags().Lookup(name))
	}
	_ = viper.BindEnv("serve.root-template", "EPT_ROOT_TEMPLATE")
}

func runServe(cmd *cobra.Command, args []string) error {
	server := ept.NewServer(logger, viper.GetInt("serve.concurrency"), viper.GetString("serve.root-template"), viper.GetString("serve.cors"))

	scheduler, err := ept.NewScheduler(server.RegistryForScheduler(), viper.GetDuration("serve.sweep-interval"), viper.GetDuration("serve.idle-window"), logger)
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}
	scheduler.Start()
	defer scheduler.Shutdown()

	port := viper.GetInt("serve.port")
	logger.Printf("serving EPT archives on HTTP port %d", port)
	return http.ListenAndServe(":"+strconv.Itoa(port), server.Handler())
}
