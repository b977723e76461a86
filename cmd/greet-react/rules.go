// ABOUTME: The rules subcommand prints a team's watch rules straight from the database
// ABOUTME: Output is a sorted table by default or the stored JSON document with --json

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/2389/greet-react/internal/store"
)

func runRules(ctx context.Context, args []string) error {
	flags := pflag.NewFlagSet("rules", pflag.ContinueOnError)
	configFlag := flags.StringP("config", "c", "", "path to config file")
	team := flags.StringP("team", "t", "", "Slack team ID (required)")
	channel := flags.String("channel", "", "only show rules for this channel")
	asJSON := flags.Bool("json", false, "print the raw rules document as JSON")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if *team == "" {
		return fmt.Errorf("--team is required")
	}

	cfg, _, err := loadConfig(*configFlag, true)
	if err != nil {
		return err
	}

	st, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer st.Close()

	rules, err := st.TeamRules(ctx, *team)
	if err != nil {
		return fmt.Errorf("reading rules for %s: %w", *team, err)
	}
	if *channel != "" {
		rules = filterChannel(rules, *channel)
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rules)
	}
	return printRules(os.Stdout, rules)
}

func filterChannel(rules store.Rules, channelID string) store.Rules {
	users, ok := rules[channelID]
	if !ok {
		return store.Rules{}
	}
	return store.Rules{channelID: users}
}

func printRules(w io.Writer, rules store.Rules) error {
	if len(rules) == 0 {
		_, err := fmt.Fprintln(w, "No rules.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CHANNEL\tUSER\tEMOJIS")

	channels := make([]string, 0, len(rules))
	for ch := range rules {
		channels = append(channels, ch)
	}
	slices.Sort(channels)

	for _, ch := range channels {
		users := make([]string, 0, len(rules[ch]))
		for u := range rules[ch] {
			users = append(users, u)
		}
		slices.Sort(users)
		for _, u := range users {
			names := make([]string, 0, rules[ch][u].Len())
			for _, e := range rules[ch][u] {
				names = append(names, ":"+e+":")
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\n", ch, u, strings.Join(names, " "))
		}
	}
	return tw.Flush()
}
