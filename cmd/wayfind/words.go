package main

import (
	"fmt"
	"math/rand"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

func wordsCmd() *cobra.Command {
	var asCSV bool

	cmd := &cobra.Command{
		Use:   "words",
		Short: "Manage the topic word suggestions",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := cliApp()
			if err != nil {
				return err
			}
			defer a.Close()

			table := a.svc.Words()
			if asCSV {
				return table.WriteCSV(os.Stdout)
			}

			words := table.Words()
			sort.SliceStable(words, func(i, j int) bool {
				return words[i].Frequency > words[j].Frequency
			})
			for _, w := range words {
				fmt.Printf("%4d  %-10s %s\n", w.Frequency, w.Category, w.Word)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asCSV, "csv", false, "print as CSV")

	cmd.AddCommand(wordsAddCmd())
	cmd.AddCommand(wordsRemoveCmd())
	cmd.AddCommand(wordsSetCmd())
	cmd.AddCommand(wordsSampleCmd())
	cmd.AddCommand(wordsResetCmd())
	return cmd
}

func wordsAddCmd() *cobra.Command {
	var (
		frequency int
		category  string
	)

	cmd := &cobra.Command{
		Use:   "add [word]",
		Short: "Add a word or update an existing one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := cliApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.svc.Words().Add(args[0], frequency, category); err != nil {
				return err
			}
			fmt.Printf("Added word: %s\n", args[0])
			return nil
		},
	}

	cmd.Flags().IntVarP(&frequency, "frequency", "f", 50, "frequency between 1 and 100")
	cmd.Flags().StringVarP(&category, "category", "c", "", "category (default custom)")
	return cmd
}

func wordsRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove [word]",
		Short: "Remove a word",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := cliApp()
			if err != nil {
				return err
			}
			defer a.Close()

			found, err := a.svc.Words().Remove(args[0])
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("word not found: %s", args[0])
			}
			fmt.Printf("Removed word: %s\n", args[0])
			return nil
		},
	}
}

func wordsSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set [word] [frequency]",
		Short: "Change the frequency of a word",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			frequency, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid frequency %q", args[1])
			}

			a, err := cliApp()
			if err != nil {
				return err
			}
			defer a.Close()

			found, err := a.svc.Words().SetFrequency(args[0], frequency)
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("word not found: %s", args[0])
			}
			fmt.Printf("Set %s to %s\n", args[0], args[1])
			return nil
		},
	}
}

func wordsSampleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sample",
		Short: "Show a weighted sample as the word cloud would display it",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := cliApp()
			if err != nil {
				return err
			}
			defer a.Close()

			rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
			for _, w := range a.svc.Words().Sample(rnd) {
				fmt.Printf("%3d  %s\n", w.Size, w.Word)
			}
			return nil
		},
	}
}

func wordsResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Restore the default word list",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := cliApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.svc.Words().Reset(); err != nil {
				return err
			}
			fmt.Println("Word list reset to defaults.")
			return nil
		},
	}
}
