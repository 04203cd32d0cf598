package cmd

import (
	"errors"
	"fmt"

	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func followCmd() *cli.Command {
	return &cli.Command{
		Name:      "follow",
		Usage:     "Follow one or more profiles",
		ArgsUsage: "<reference>...",
		Description: `Resolves each reference, either a profile URL or a bare profile id,
and adds it to the follow list. The feed is refreshed afterwards so the
new follow list is saved to the cache.`,
		Flags: []cli.Flag{daysFlag()},
		Action: func(ctx *cli.Context) error {
			if ctx.NArg() == 0 {
				return errors.New("at least one profile reference is required")
			}

			s, err := openSession(ctx, true)
			if err != nil {
				return err
			}
			defer s.close()

			failed := s.follow(ctx.Context, ctx.Args().Slice())

			if _, err := s.refresh(ctx); err != nil {
				return err
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d profiles could not be followed", failed, ctx.NArg())
			}
			return nil
		},
	}
}

func unfollowCmd() *cli.Command {
	return &cli.Command{
		Name:        "unfollow",
		Usage:       "Stop following one or more profiles",
		ArgsUsage:   "<id>...",
		Description: `Removes the profiles with the given ids from the follow list and refreshes the feed.`,
		Flags:       []cli.Flag{daysFlag()},
		Action: func(ctx *cli.Context) error {
			if ctx.NArg() == 0 {
				return errors.New("at least one profile id is required")
			}

			s, err := openSession(ctx, true)
			if err != nil {
				return err
			}
			defer s.close()

			missing := lo.Reject(ctx.Args().Slice(), func(id string, _ int) bool {
				return s.engine.RemoveProfile(id)
			})
			for _, id := range missing {
				log.WithField("id", id).Warn("Profile is not followed")
			}

			_, err = s.refresh(ctx)
			return err
		},
	}
}

func followingCmd() *cli.Command {
	return &cli.Command{
		Name:  "following",
		Usage: "List followed profiles",
		Description: `Prints the followed profiles stored in the cache, one JSON object per line.
Does not contact the provider.`,
		Action: func(ctx *cli.Context) error {
			s, err := openSession(ctx, false)
			if err != nil {
				return err
			}
			defer s.close()

			for _, profile := range s.engine.ListFollowed() {
				printJSON(profile)
			}
			return nil
		},
	}
}

