package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/MrEthical07/goOverlay/kv"
)

func newWatchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Follow changes other processes make to the file backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fs, ok := a.store.(*kv.FileStore)
			if !ok {
				return errors.New("watch needs --backend file")
			}

			ctx, stop := signal.NotifyContext(a.context(cmd), os.Interrupt, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			prefix := a.cfg.Store.KeyPrefix
			err := fs.Watch(ctx, func(key string) {
				if !strings.HasPrefix(key, prefix) {
					return
				}
				collection := strings.TrimPrefix(key, prefix)
				line := fmt.Sprintf("%s %s changed", time.Now().Format(time.TimeOnly), collection)
				if collection == "suspensions" {
					line += fmt.Sprintf(" (%d active)", len(a.engine.ListSuspensions(ctx)))
				}
				fmt.Fprintln(out, line)
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "Watching %s, press Ctrl-C to stop.\n", fs.Dir())
			<-ctx.Done()
			return nil
		},
	}
}
