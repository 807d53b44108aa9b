package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"gigbridge/internal/deeplink"
	"gigbridge/internal/navigation"
	"gigbridge/internal/platform/logging"
	"gigbridge/internal/session"
	"gigbridge/internal/users"
)

func rootCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "linkctl",
		Short: "Inspect gigbridge deep links and routing decisions",
		Long: `linkctl decodes deep links the way the app does and evaluates the
auth resolution state machine for a given session, user record and location.

Nothing is read from or written to the auth service or the databases.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVarP(&output, "output", "o", "yaml", "Output format (yaml, json)")

	cmd.AddCommand(decodeCmd(&output), evaluateCmd(&output))
	return cmd
}

func decodeCmd(output *string) *cobra.Command {
	var (
		scheme string
		host   string
		debug  bool
	)

	cmd := &cobra.Command{
		Use:   "decode <url>",
		Short: "Decode a deep link into an intent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			level := "warn"
			if debug {
				level = "debug"
			}
			logger := logging.NewWithWriter(cmd.ErrOrStderr(), level, "text")
			intent := deeplink.NewDecoder(scheme, host, logger).Decode(args[0])
			return render(cmd.OutOrStdout(), *output, newIntentView(intent))
		},
	}
	cmd.Flags().StringVar(&scheme, "scheme", "gigbridge", "Custom URL scheme of the app")
	cmd.Flags().StringVar(&host, "host", "gigbridge.app", "Universal link host")
	cmd.Flags().BoolVar(&debug, "debug", false, "Log why a link was not recognized")
	return cmd
}

func evaluateCmd(output *string) *cobra.Command {
	var (
		location     string
		signedIn     bool
		confirmed    bool
		recordRole   string
		completed    bool
		resetCode    string
		linkError    string
		accessDenied bool
	)

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Evaluate where a client belongs",
		Example: `  linkctl evaluate --location /home
  linkctl evaluate --signed-in --confirmed --record-role student --location /login
  linkctl evaluate --signed-in --confirmed --record-role business -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			in := navigation.Inputs{
				Location:     navigation.ParseLocation(location),
				ResetCode:    resetCode,
				LinkError:    linkError,
				AccessDenied: accessDenied,
			}
			if signedIn {
				in.Session = &session.Session{
					UserID:         uuid.New(),
					EmailConfirmed: confirmed,
				}
			}
			if recordRole != "" {
				if in.Session == nil {
					return fmt.Errorf("--record-role requires --signed-in")
				}
				in.Record = &users.Record{
					ID:               in.Session.UserID,
					Role:             users.Role(strings.ToLower(recordRole)),
					ProfileCompleted: completed,
				}
			}
			return render(cmd.OutOrStdout(), *output, newDecisionView(navigation.Evaluate(in)))
		},
	}
	cmd.Flags().StringVar(&location, "location", "", "Current screen path, e.g. /(tabs)/home")
	cmd.Flags().BoolVar(&signedIn, "signed-in", false, "A session is present")
	cmd.Flags().BoolVar(&confirmed, "confirmed", false, "The session's email is confirmed")
	cmd.Flags().StringVar(&recordRole, "record-role", "", "Role of the stored user record; omit for no record")
	cmd.Flags().BoolVar(&completed, "completed", false, "The user record has finished onboarding")
	cmd.Flags().StringVar(&resetCode, "reset-code", "", "Code of a pending password-reset link")
	cmd.Flags().StringVar(&linkError, "link-error", "", "Error code of a failed auth-callback link")
	cmd.Flags().BoolVar(&accessDenied, "access-denied", false, "The record store refused the user")
	return cmd
}

type intentView struct {
	Kind             deeplink.Kind       `json:"kind" yaml:"kind"`
	Code             string              `json:"code,omitempty" yaml:"code,omitempty"`
	HasTokens        bool                `json:"hasTokens" yaml:"hasTokens"`
	Type             string              `json:"type,omitempty" yaml:"type,omitempty"`
	ErrorCode        string              `json:"errorCode,omitempty" yaml:"errorCode,omitempty"`
	ErrorDescription string              `json:"errorDescription,omitempty" yaml:"errorDescription,omitempty"`
	Params           map[string][]string `json:"params,omitempty" yaml:"params,omitempty"`
}

func newIntentView(i deeplink.Intent) intentView {
	return intentView{
		Kind:             i.Kind,
		Code:             i.Code,
		HasTokens:        i.HasTokens(),
		Type:             i.Type,
		ErrorCode:        i.ErrorCode,
		ErrorDescription: i.ErrorDescription,
		Params:           i.Params,
	}
}

type decisionView struct {
	State    navigation.State `json:"state" yaml:"state"`
	Role     users.Role       `json:"role,omitempty" yaml:"role,omitempty"`
	Entry    string           `json:"entry" yaml:"entry"`
	Navigate *string          `json:"navigate" yaml:"navigate"`
	SignOut  bool             `json:"signOut" yaml:"signOut"`
}

func newDecisionView(d navigation.Decision) decisionView {
	view := decisionView{
		State:   d.State,
		Role:    d.Role,
		Entry:   d.Destination.Entry.String(),
		SignOut: d.SignOut,
	}
	if d.Navigate != nil {
		target := d.Navigate.String()
		view.Navigate = &target
	}
	return view
}

func render(w io.Writer, format string, v any) error {
	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml", "":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}
