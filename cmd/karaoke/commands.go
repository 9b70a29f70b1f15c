package main

import (
	"errors"
	"fmt"
	"karaokelover/config"
	"karaokelover/services/identity"
	"karaokelover/services/youtube"
	"strings"

	"github.com/spf13/cobra"
)

const watchURL = "https://www.youtube.com/watch?v="

func init() {
	cmdRoot.AddCommand(cmdIdentify())
	cmdRoot.AddCommand(cmdLyrics())
	cmdRoot.AddCommand(cmdRecommend())
	cmdRoot.AddCommand(cmdSearch())
}

func titleArg(args []string) (string, error) {
	title := strings.TrimSpace(strings.Join(args, " "))
	if title == "" {
		return "", usageError{msg: "A video title is required.\nExample:\n  karaoke identify \"Adele - Hello (Karaoke Version)\""}
	}
	return title, nil
}

func cmdIdentify() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "identify <title>",
		Short: "Parse artist and song from a karaoke video title",
		RunE: func(cmd *cobra.Command, args []string) error {
			title, err := titleArg(args)
			if err != nil {
				return err
			}
			noAI, _ := cmd.Flags().GetBool("no-ai")

			conf := config.Get()
			gen, err := textGenerator(cmd.Context(), conf)
			if err != nil {
				out.Warn(err.Error())
			}

			id, strategy := newIdentityResolver(conf, gen, noAI).ResolveWithStrategy(cmd.Context(), title)
			if out.JSON {
				return out.EmitJSON(map[string]any{"artist": id.Artist, "song": id.Song, "strategy": strategy})
			}
			out.Print(renderIdentity(id, strategy))
			return nil
		},
	}
	cmd.Flags().Bool("no-ai", false, "Use the rule-based normalizer only")
	return cmd
}

func cmdLyrics() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lyrics <title>",
		Short: "Fetch plain lyrics for a karaoke video title",
		RunE: func(cmd *cobra.Command, args []string) error {
			title, err := titleArg(args)
			if err != nil {
				return err
			}
			noAI, _ := cmd.Flags().GetBool("no-ai")

			conf := config.Get()
			gen, err := textGenerator(cmd.Context(), conf)
			if err != nil {
				out.Warn(err.Error())
			}

			id := newIdentityResolver(conf, gen, noAI).Resolve(cmd.Context(), title)
			if id.Song == "" {
				id.Song = title
			}

			result, err := newLyricsResolver(conf).Resolve(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("no lyrics found for %q", id.SearchQuery())
			}
			if out.JSON {
				return out.EmitJSON(result)
			}
			out.Print(out.Bold(id.SearchQuery()) + " " + out.Gray("("+string(result.Source)+")"))
			out.Print("")
			out.Print(result.Lyrics)
			return nil
		},
	}
	cmd.Flags().Bool("no-ai", false, "Use the rule-based normalizer only")
	return cmd
}

func cmdRecommend() *cobra.Command {
	return &cobra.Command{
		Use:   "recommend <song>",
		Short: "Suggest similar songs to sing next",
		RunE: func(cmd *cobra.Command, args []string) error {
			title, err := titleArg(args)
			if err != nil {
				return err
			}

			conf := config.Get()
			gen, err := textGenerator(cmd.Context(), conf)
			if err != nil {
				return err
			}
			recommender := newRecommender(conf, gen)
			if !recommender.Enabled() {
				return errors.New("recommendations need GEMINI_API_KEY or ANTHROPIC_API_KEY")
			}

			id := newIdentityResolver(conf, gen, false).Resolve(cmd.Context(), title)
			if id.Song == "" {
				id.Song = title
			}
			items := recommender.Recommend(cmd.Context(), id)
			if out.JSON {
				return out.EmitJSON(map[string]any{"recommendations": items})
			}
			if len(items) == 0 {
				out.Warn("No recommendations this time.")
				return nil
			}
			for i, item := range items {
				out.Print(fmt.Sprintf("%d. %s", i+1, identity.SongIdentity{Artist: item.Artist, Song: item.Song}.SearchQuery()))
			}
			return nil
		},
	}
}

func cmdSearch() *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: "Search YouTube for karaoke videos",
		RunE: func(cmd *cobra.Command, args []string) error {
			query, err := titleArg(args)
			if err != nil {
				return err
			}

			client, err := newYouTubeClient(cmd.Context(), config.Get())
			if errors.Is(err, youtube.ErrNotConfigured) {
				return errors.New("search needs YOUTUBE_API_KEY")
			}
			if err != nil {
				return err
			}

			videos, err := client.Search(cmd.Context(), query)
			if err != nil {
				return err
			}
			if out.JSON {
				return out.EmitJSON(map[string]any{"results": videos})
			}
			if len(videos) == 0 {
				out.Warn("No karaoke videos found.")
				return nil
			}
			for _, v := range videos {
				out.Print(renderVideo(v))
			}
			return nil
		},
	}
}

func renderIdentity(id identity.SongIdentity, strategy identity.Strategy) string {
	artist := id.Artist
	if artist == "" {
		artist = out.Gray("unknown")
	}
	return fmt.Sprintf("%s %s\n%s   %s\n%s",
		out.Bold("Artist:"), artist,
		out.Bold("Song:"), id.Song,
		out.Gray("via "+string(strategy)))
}

func renderVideo(v youtube.Video) string {
	return fmt.Sprintf("%s  %s\n    %s", out.Green(v.Title), out.Gray(v.Channel), watchURL+v.VideoID)
}
