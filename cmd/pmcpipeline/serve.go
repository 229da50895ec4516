package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/reichan1998/pmcpipeline/internal/logging"
	"github.com/reichan1998/pmcpipeline/internal/metrics"
	"github.com/reichan1998/pmcpipeline/internal/stepinfo"
)

// newServeCommand starts a small status/metrics HTTP server, adapted from
// edict.go's gin REST wrapper around the teacher's command-line tools into
// an observability surface for a long-running pipeline process.
func newServeCommand() *cobra.Command {
	var addr, watchDir string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve /status and /metrics for a pipeline data directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := resolveConfig()
			log := newLogger(cfg)
			logging.Banner("serve")

			gin.SetMode(gin.ReleaseMode)
			router := gin.New()
			router.Use(gin.Recovery())

			router.GET("/status", func(c *gin.Context) {
				dir := watchDir
				if dir == "" {
					dir = cfg.DataDir
				}
				info, ok, err := stepinfo.Read(dir)
				if err != nil {
					c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
					return
				}
				if !ok {
					c.JSON(http.StatusNotFound, gin.H{"error": "no info.json in watched directory"})
					return
				}
				c.JSON(http.StatusOK, info)
			})

			reg := metrics.Registry()
			router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

			log.WithField("addr", addr).Info("serving status and metrics")
			return router.Run(addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	cmd.Flags().StringVar(&watchDir, "watch-dir", "", "directory whose info.json is reported by /status (default: data dir)")
	return cmd
}
