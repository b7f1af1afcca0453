// Copyright 2025 Tom Barlow
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

package daemon

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/tombee/xunlei/internal/commands/shared"
)

// NewLogCommand creates the log command.
func NewLogCommand() *cobra.Command {
	var (
		lines      int
		stdoutOnly bool
		stderrOnly bool
	)

	cmd := &cobra.Command{
		Use:   "log",
		Short: "Print the background launcher's output",
		Long: `Print the tail of the files a background launcher writes its
stdout and stderr to.`,
		Example: `  # Last 50 lines of both files
  xunlei log

  # Only errors, more context
  xunlei log --stderr -n 200`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			files := []string{cfg.Daemon.StdoutFile}
			if cfg.Daemon.StderrFile != cfg.Daemon.StdoutFile {
				files = append(files, cfg.Daemon.StderrFile)
			}
			switch {
			case stdoutOnly:
				files = []string{cfg.Daemon.StdoutFile}
			case stderrOnly:
				files = []string{cfg.Daemon.StderrFile}
			}

			return printLogs(cmd.OutOrStdout(), files, lines, len(files) > 1 && shared.IsTerminal(os.Stdout))
		},
	}

	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of lines to show per file (0 for all)")
	cmd.Flags().BoolVar(&stdoutOnly, "stdout", false, "Only show the stdout file")
	cmd.Flags().BoolVar(&stderrOnly, "stderr", false, "Only show the stderr file")
	cmd.MarkFlagsMutuallyExclusive("stdout", "stderr")

	return cmd
}

func printLogs(w io.Writer, files []string, n int, headers bool) error {
	for i, path := range files {
		tail, err := tailLines(path, n)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				fmt.Fprintln(os.Stderr, shared.RenderWarn(fmt.Sprintf("%s does not exist yet", path)))
				continue
			}
			return fmt.Errorf("failed to read %s: %w", path, err)
		}

		if headers {
			if i > 0 {
				fmt.Fprintln(w)
			}
			fmt.Fprintln(w, shared.Header.Render("==> "+path+" <=="))
		}
		for _, line := range tail {
			fmt.Fprintln(w, line)
		}
	}
	return nil
}

// tailLines returns the last n lines of path, or all of them when n <= 0.
func tailLines(path string, n int) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		lines = append(lines, sc.Text())
		if n > 0 && len(lines) > n {
			lines = lines[1:]
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}
