package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/banshee-data/isobath/internal/api"
	"github.com/banshee-data/isobath/internal/httputil"
)

const envServer = "ISOBATH_SERVER"

// newClient is replaced in tests.
var newClient = func(server string) *api.Client {
	return api.NewClient(server, httputil.NewStandardClient(nil))
}

func defaultServer() string {
	if s := os.Getenv(envServer); s != "" {
		return s
	}
	return "http://localhost:8080"
}

func newRegenerateCmd() *cobra.Command {
	var (
		ef       engineFlags
		server   string
		surveyID string
	)
	cmd := &cobra.Command{
		Use:   "regenerate",
		Short: "Regenerate a survey's stored contours on a running server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rep, err := newClient(server).Regenerate(cmd.Context(), surveyID, ef.interval, ef.grid)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s: %s (run %s, %d lines, %d replaced)\n",
				rep.SurveyID, rep.Message, rep.RunID, rep.Inserted, rep.Deleted)
			if len(rep.FailedLevels) > 0 {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "failed levels: %v\n", rep.FailedLevels)
			}
			if rep.Warning != "" {
				_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", rep.Warning)
			}
			return nil
		},
	}
	ef.register(cmd.Flags())
	cmd.Flags().StringVar(&server, "server", defaultServer(), "isobath server URL (env "+envServer+")")
	cmd.Flags().StringVar(&surveyID, "survey", "", "survey id")
	_ = cmd.MarkFlagRequired("survey")
	return cmd
}

func newStatusCmd() *cobra.Command {
	var server string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the status of a running server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := newClient(server).Status(cmd.Context())
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(st)
		},
	}
	cmd.Flags().StringVar(&server, "server", defaultServer(), "isobath server URL (env "+envServer+")")
	return cmd
}
