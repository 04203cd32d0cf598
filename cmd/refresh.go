package cmd

import (
	"encoding/json"
	"fmt"

	"curafeed/models"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func daysFlag() cli.Flag {
	return &cli.IntFlag{
		Name:    "days",
		Aliases: []string{"d"},
		Usage:   "Keep posts published within this many days. Defaults to days_back from the config",
		EnvVars: []string{"CURAFEED_DAYS"},
	}
}

// refresh runs one refresh cycle with the --days flag or the configured window
func (s *session) refresh(ctx *cli.Context) (*models.RefreshResult, error) {
	days := s.config.DaysBack
	if ctx.IsSet("days") {
		days = ctx.Int("days")
	}

	result, err := s.engine.RefreshFeed(ctx.Context, days)
	if result != nil {
		for _, failure := range result.Failures {
			log.WithFields(log.Fields{
				"id":    failure.ProfileID,
				"name":  failure.ProfileName,
				"error": failure.Message,
			}).Warn("Profile skipped in this refresh")
		}
	}
	return result, err
}

func refreshCmd() *cli.Command {
	return &cli.Command{
		Name:  "refresh",
		Usage: "Fetch recent posts and rebuild the feed",
		Description: `Fetches the most recent posts of every followed profile, including the
profiles listed in the configuration file, and saves the assembled feed.

Prints each post of the feed as a JSON object on a single line, newest first.
Use a tool like jq to process the output.

Prints all other log messages to stderr.`,
		Flags: []cli.Flag{daysFlag()},
		Action: func(ctx *cli.Context) error {
			s, err := openSession(ctx, true)
			if err != nil {
				return err
			}
			defer s.close()

			s.follow(ctx.Context, s.config.References())

			result, err := s.refresh(ctx)
			if result != nil {
				for _, post := range result.Snapshot.Posts {
					printJSON(post)
				}
			}
			return err
		},
	}
}

func feedCmd() *cli.Command {
	return &cli.Command{
		Name:  "feed",
		Usage: "Print the cached feed",
		Description: `Prints the posts of the last saved feed as JSON objects, one per line.
Does not contact the provider.`,
		Action: func(ctx *cli.Context) error {
			s, err := openSession(ctx, false)
			if err != nil {
				return err
			}
			defer s.close()

			snapshot, err := s.engine.GetCachedFeed(ctx.Context)
			if err != nil {
				return err
			}
			if snapshot == nil {
				log.Info("No feed has been cached yet, run refresh first")
				return nil
			}

			log.WithFields(log.Fields{
				"lastUpdated": snapshot.LastUpdated,
				"posts":       len(snapshot.Posts),
			}).Info("Cached feed")
			for _, post := range snapshot.Posts {
				printJSON(post)
			}
			return nil
		},
	}
}

// printJSON prints v as a single line of JSON on stdout
func printJSON(v any) {
	out, err := json.Marshal(v)
	if err != nil {
		log.WithField("error", err).Error("Could not encode output")
		return
	}
	fmt.Println(string(out))
}
