package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/openquant/collector/internal/module"
)

// newStatusCmd creates the 'status' subcommand, which queries a running
// service's management API and prints a table of module states.
func newStatusCmd() *cobra.Command {
	var (
		addr   string
		apiKey string
	)
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Shows the module status of a running service",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatusCommand(cmd, addr, apiKey)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "http://127.0.0.1:8080", "base URL of the management API")
	cmd.Flags().StringVar(&apiKey, "api-key", "", "API key, if the service requires one")
	return cmd
}

func runStatusCommand(cmd *cobra.Command, addr, apiKey string) error {
	req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, addr+"/api/v1/modules", nil)
	if err != nil {
		return fmt.Errorf("build status request: %w", err)
	}
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("query %s: %w", addr, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("service returned %s", resp.Status)
	}

	var payload struct {
		Modules []module.Snapshot `json:"modules"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return fmt.Errorf("decode status response: %w", err)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "MODULE\tSTATE\tHEALTH\tUPTIME\tRESTARTS\tERROR")
	for _, m := range payload.Modules {
		uptime := "-"
		if m.UptimeSeconds > 0 {
			uptime = (time.Duration(m.UptimeSeconds) * time.Second).String()
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
			m.Name, m.State, m.HealthStatus, uptime, m.RestartCount, m.ErrorMessage)
	}
	return w.Flush()
}
