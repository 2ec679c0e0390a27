package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

// The gateway cache lives inside the serve process, so these commands talk
// to a running server instead of building a fresh, empty gateway of their
// own.
var cacheAddr string

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Gateway response cache operations (against a running server)",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print the running server's cache statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		var payload struct {
			Cache json.RawMessage `json:"cache"`
		}
		if err := serverGet(serverAddr()+"/metrics", &payload); err != nil {
			return err
		}

		var out json.RawMessage = payload.Cache
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Invalidate all cached responses on the running server",
	RunE: func(cmd *cobra.Command, args []string) error {
		var payload struct {
			Invalidated int `json:"invalidated"`
		}
		if err := serverPost(serverAddr()+"/cache/invalidate", &payload); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%d entries invalidated\n", payload.Invalidated)
		return nil
	},
}

func serverAddr() string {
	if cacheAddr != "" {
		return cacheAddr
	}
	return fmt.Sprintf("http://localhost:%d", cfg.Server.Port)
}

var serverHTTPClient = &http.Client{Timeout: 10 * time.Second}

func serverGet(url string, out any) error {
	resp, err := serverHTTPClient.Get(url)
	if err != nil {
		return eris.Wrapf(err, "is the server running? GET %s", url)
	}
	defer resp.Body.Close()
	return decodeServerResponse(resp, out)
}

func serverPost(url string, out any) error {
	resp, err := serverHTTPClient.Post(url, "application/json", nil)
	if err != nil {
		return eris.Wrapf(err, "is the server running? POST %s", url)
	}
	defer resp.Body.Close()
	return decodeServerResponse(resp, out)
}

func decodeServerResponse(resp *http.Response, out any) error {
	if resp.StatusCode != http.StatusOK {
		return eris.Errorf("server returned %s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return eris.Wrap(err, "decode server response")
	}
	return nil
}

func init() {
	cacheCmd.PersistentFlags().StringVar(&cacheAddr, "addr", "", "server base URL (default http://localhost:<server.port>)")
	cacheCmd.AddCommand(cacheStatsCmd, cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}
