/*
 * Copyright 2025 Google LLC
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *    https://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */
package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/GoogleCloudPlatform/db-metadata-profiler/internal/config"
	"github.com/GoogleCloudPlatform/db-metadata-profiler/internal/server"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Short:   "Serve table status, profiling and metadata generation over HTTP",
	Example: `./db_metadata_profiler serve --project my-project --listen-port 8080`,
	RunE:    runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, cleanup, err := setupService(ctx, serviceOptions{})
	if err != nil {
		return err
	}
	defer cleanup()

	srv := server.NewServer(server.Config{
		Service: svc,
		Port:    appConfig.Server.Port,
		Logger:  logger,
	})
	return srv.Serve(ctx)
}

func init() {
	serveCmd.Flags().Int("listen-port", config.DefaultServerPort, "HTTP port to listen on")
}
