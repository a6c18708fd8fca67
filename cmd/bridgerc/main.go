// Copyright 2025 karhuops Oy
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/karhuops/bridgerc/cmd/bridgerc/commands"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "bridgerc",
		Short: "Scheduled delivery of CSV exports as spreadsheets",
		Long: `bridgerc watches directories on a remote file store, converts the CSV
exports it finds there into workbooks (or reshaped CSVs), archives the
consumed inputs to a history directory, and delivers the results to a
SharePoint document library or back to the remote store.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogging()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	addRootFlags(rootCmd)

	o := newRootOpts()
	rootCmd.AddCommand(
		commands.NewRunCmd(o),
		commands.NewScheduleCmd(o),
		commands.NewServeCmd(o),
		commands.NewJobsCmd(o),
	)

	ctx := log.Logger.WithContext(context.Background())
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Logger.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}
