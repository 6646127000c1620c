package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"pkt.systems/foldscreen/internal/appconfig"
	"pkt.systems/foldscreen/schema"
	"pkt.systems/pslog"
)

func newSendCmd() *cobra.Command {
	var cfgPath string
	var contextID string
	var server string
	var action string
	var timeout time.Duration
	var flags patchFlags
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Post an update message to a context of a running server",
		RunE: func(cmd *cobra.Command, args []string) error {
			patch := flags.patch(cmd)
			if patch.Empty() && action == schema.ActionUpdate {
				return errors.New("nothing to send: use --mode, --fold or --shell")
			}
			cfg, err := loadConfig(cmd, cfgPath)
			if err != nil {
				return err
			}
			id, err := contextFlag(cfg, contextID)
			if err != nil {
				return err
			}
			if server == "" {
				server = serverURL(cfg)
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			resp, err := postMessage(ctx, server, id, schema.UpdateMessage{Action: action, Value: patch})
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), resp)
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	cmd.Flags().StringVar(&contextID, "context", "", "browsing context id")
	cmd.Flags().StringVar(&server, "server", "", "server base url (default derived from http config)")
	cmd.Flags().StringVar(&action, "action", schema.ActionUpdate, "message action")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "request timeout")
	flags.register(cmd)
	return cmd
}

// serverURL derives the URL of a locally running server from its config.
func serverURL(cfg appconfig.Config) string {
	if base := strings.TrimSpace(cfg.HTTP.BaseURL); base != "" {
		return strings.TrimRight(base, "/")
	}
	host, port, err := net.SplitHostPort(cfg.HTTP.Addr)
	if err != nil {
		return "http://127.0.0.1:27490"
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port) + strings.TrimRight(cfg.HTTP.BasePath, "/")
}

func postMessage(ctx context.Context, server string, id schema.ContextID, msg schema.UpdateMessage) (schema.StateResponse, error) {
	endpoint, err := url.JoinPath(server, "api", "contexts", string(id), "message")
	if err != nil {
		return schema.StateResponse{}, err
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return schema.StateResponse{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return schema.StateResponse{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	pslog.Ctx(ctx).Debug("send message", "url", endpoint, "action", msg.Action)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return schema.StateResponse{}, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		var failure struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&failure)
		if failure.Error == "" {
			failure.Error = resp.Status
		}
		return schema.StateResponse{}, fmt.Errorf("server rejected message (%d): %s", resp.StatusCode, failure.Error)
	}
	var out schema.StateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return schema.StateResponse{}, fmt.Errorf("decode response: %w", err)
	}
	return out, nil
}
