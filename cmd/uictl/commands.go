package main

import (
	"encoding/json"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/binjactl/uiengine/internal/client"
	"github.com/binjactl/uiengine/internal/ipc"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "uictl",
		Short:         "Drive the UI automation engine over HTTP",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	defaultURL := os.Getenv("UIENGINE_URL")
	if defaultURL == "" {
		defaultURL = client.DefaultBaseURL
	}
	root.PersistentFlags().String("url", defaultURL, "engine base URL (env UIENGINE_URL)")
	root.PersistentFlags().Duration("timeout", 0, "request timeout (0 waits for the engine's own bound)")

	root.AddCommand(
		newOpenCmd(),
		newQuitCmd(),
		newStatusbarCmd(),
		newViewsCmd(),
		newStatusCmd(),
		newRunsCmd(),
	)
	return root
}

func clientFor(cmd *cobra.Command) *client.Client {
	base, _ := cmd.Flags().GetString("url")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	return client.New(base, timeout)
}

func newOpenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "open FILE",
		Short: "Open a file, configuring the open-with-options dialog",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := ipc.OpenRequest{}
			if len(args) == 1 {
				req.Filepath = args[0]
			}
			req.Platform, _ = cmd.Flags().GetString("platform")
			req.ViewType, _ = cmd.Flags().GetString("view-type")
			req.InspectOnly, _ = cmd.Flags().GetBool("inspect")
			noClick, _ := cmd.Flags().GetBool("no-click")
			click := !noClick
			req.ClickOpen = &click

			env, err := clientFor(cmd).Open(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printEnvelope(cmd.OutOrStdout(), env)
		},
	}
	cmd.Flags().String("platform", "", "platform to select in the options dialog (e.g. x86_64)")
	cmd.Flags().String("view-type", "", "view type to select in the options dialog (e.g. Raw)")
	cmd.Flags().Bool("no-click", false, "leave the options dialog open instead of clicking Open")
	cmd.Flags().Bool("inspect", false, "report UI state without changing it")
	return cmd
}

func newQuitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quit",
		Short: "Close the current view and answer the save prompt",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var req ipc.QuitRequest
			req.Decision, _ = cmd.Flags().GetString("decision")
			req.MarkDirty, _ = cmd.Flags().GetBool("mark-dirty")
			req.InspectOnly, _ = cmd.Flags().GetBool("inspect")
			req.WaitMs, _ = cmd.Flags().GetInt("wait-ms")
			req.QuitApp, _ = cmd.Flags().GetBool("quit-app")
			req.QuitDelayMs, _ = cmd.Flags().GetInt("quit-delay-ms")

			env, err := clientFor(cmd).Quit(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printEnvelope(cmd.OutOrStdout(), env)
		},
	}
	cmd.Flags().String("decision", "auto", "save decision: auto, save, dont-save or cancel")
	cmd.Flags().Bool("mark-dirty", false, "mark the current view modified before closing")
	cmd.Flags().Bool("inspect", false, "report dialogs without clicking anything")
	cmd.Flags().Int("wait-ms", 2000, "how long to watch for confirmation dialogs")
	cmd.Flags().Bool("quit-app", false, "quit the application after closing")
	cmd.Flags().Int("quit-delay-ms", 300, "delay before the application quits")
	return cmd
}

func newStatusbarCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "statusbar",
		Short: "Read the status bar text of the main window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var req ipc.StatusbarRequest
			req.AllWindows, _ = cmd.Flags().GetBool("all-windows")
			req.IncludeHidden, _ = cmd.Flags().GetBool("include-hidden")

			env, err := clientFor(cmd).Statusbar(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printEnvelope(cmd.OutOrStdout(), env)
		},
	}
	cmd.Flags().Bool("all-windows", false, "scan every top-level window, not only main windows")
	cmd.Flags().Bool("include-hidden", false, "include hidden windows")
	return cmd
}

func newViewsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "views",
		Short: "List open views",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := clientFor(cmd).Views(cmd.Context())
			if err != nil {
				return err
			}
			return printEnvelope(cmd.OutOrStdout(), env)
		},
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether a view is loaded",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := clientFor(cmd).Status(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), st)
		},
	}
}

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs [RUN_ID]",
		Short: "List recent workflow runs, or show one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := clientFor(cmd)
			if len(args) == 1 {
				run, err := c.Run(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), run)
			}
			limit, _ := cmd.Flags().GetInt("limit")
			endpoint, _ := cmd.Flags().GetString("endpoint")
			runs, err := c.Runs(cmd.Context(), endpoint, limit)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), runs)
		},
	}
	cmd.Flags().Int("limit", 20, "maximum number of runs")
	cmd.Flags().String("endpoint", "", "only runs of this endpoint (e.g. /ui/open)")
	return cmd
}

func printEnvelope(w io.Writer, env *ipc.Envelope) error {
	if err := printJSON(w, env); err != nil {
		return err
	}
	if !env.OK {
		return errNotOK
	}
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
