package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pavelanni/learny/internal/result"
)

func resultCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "result RESULT_ID",
		Short: "Show a scored attempt with its question breakdown",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resultID, err := parseID(args[0])
			if err != nil {
				return err
			}
			a, err := openApp(cmd, gatePrivate)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.client.GetResult(a.ctx, resultID)
			if err != nil {
				if isNotFound(err) {
					return fmt.Errorf("result %d not found", resultID)
				}
				return err
			}
			a.out.Result(result.Build(*res), false)
			return nil
		},
	}
}

func resultsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "results",
		Short: "List your results",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd, gatePrivate)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.requireStudent(); err != nil {
				return err
			}

			u := a.user()
			if local, _ := cmd.Flags().GetBool("local"); local {
				attempts, err := a.db.ListAttempts(u.ID)
				if err != nil {
					return fmt.Errorf("list attempts: %w", err)
				}
				a.out.Attempts(attempts)
				return nil
			}

			results, err := a.client.ResultsByStudent(a.ctx, u.ID)
			if err != nil {
				return err
			}
			a.out.Results(results, false)
			return nil
		},
	}
	cmd.Flags().Bool("local", false, "Show attempts submitted from this machine instead of asking the backend")
	return cmd
}
