// Command byteqctl inspects and drives a byte queue from the shell.
//
// Logging:
//   - Base logger is created here with output format and level
//   - Logger is passed to Open via dependency injection
//   - No global slog configuration (no slog.SetDefault)
package main

import (
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	queue "bytequeue"
)

var version = "dev"

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	rootCmd := &cobra.Command{
		Use:   "byteqctl",
		Short: "Inspect and drive a byte queue",
	}
	rootCmd.PersistentFlags().String("path", "", "path to the queue's head file")
	rootCmd.PersistentFlags().Int("chunk-size", 1<<20, "chunk size in bytes, used when opening")
	_ = rootCmd.MarkPersistentFlagRequired("path")

	statCmd := &cobra.Command{
		Use:   "stat",
		Short: "Print whether the queue is empty and how many chunk files it holds",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, chunkSize, err := flags(cmd)
			if err != nil {
				return err
			}
			q, err := queue.OpenWithLogger(path, chunkSize, logger)
			if err != nil {
				return err
			}
			defer q.Close()

			st, err := q.Stats()
			if err != nil {
				return err
			}
			fmt.Printf("empty=%t chunks=%d buffered-bytes=%d max-element-size=%d\n",
				q.IsEmpty(), st.Chunks, st.BufferedBytes, q.MaxElementSize())
			return nil
		},
	}

	peekCmd := &cobra.Command{
		Use:   "peek",
		Short: "Print the head element as hex, without removing it",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, chunkSize, err := flags(cmd)
			if err != nil {
				return err
			}
			q, err := queue.OpenWithLogger(path, chunkSize, logger)
			if err != nil {
				return err
			}
			defer q.Close()

			data, ok, err := q.Peek()
			if err != nil {
				return err
			}
			if !ok {
				fmt.Println("(empty)")
				return nil
			}
			fmt.Println(hex.EncodeToString(data))
			return nil
		},
	}

	dequeueCmd := &cobra.Command{
		Use:   "dequeue",
		Short: "Remove and print the head element as hex",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, chunkSize, err := flags(cmd)
			if err != nil {
				return err
			}
			q, err := queue.OpenWithLogger(path, chunkSize, logger)
			if err != nil {
				return err
			}
			defer q.Close()

			data, ok, err := q.Peek()
			if err != nil {
				return err
			}
			if !ok {
				fmt.Println("(empty)")
				return nil
			}
			if _, err := q.Dequeue(); err != nil {
				return err
			}
			fmt.Println(hex.EncodeToString(data))
			return nil
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Drop every queued element",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, chunkSize, err := flags(cmd)
			if err != nil {
				return err
			}
			q, err := queue.OpenWithLogger(path, chunkSize, logger)
			if err != nil {
				return err
			}
			defer q.Close()

			cleared, err := q.Clear()
			if err != nil {
				return err
			}
			fmt.Printf("cleared=%t\n", cleared)
			return nil
		},
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the byteqctl version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println(version)
			return nil
		},
	}

	rootCmd.AddCommand(statCmd, peekCmd, dequeueCmd, clearCmd, versionCmd)

	if err := rootCmd.Execute(); err != nil {
		logger.Error("byteqctl failed", "error", err)
		os.Exit(1)
	}
}

func flags(cmd *cobra.Command) (path string, chunkSize int, err error) {
	path, err = cmd.Flags().GetString("path")
	if err != nil {
		return "", 0, err
	}
	chunkSize, err = cmd.Flags().GetInt("chunk-size")
	if err != nil {
		return "", 0, err
	}
	return path, chunkSize, nil
}
