package main

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/TobiSchelling/RRCFeeds/internal/database"
	"github.com/TobiSchelling/RRCFeeds/internal/feed"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show published feeds and cached shows",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openState(cfg, logger)
		if err != nil {
			return err
		}
		defer st.Close()

		records, err := st.hashes.GetPublishRecords()
		if err != nil {
			return fmt.Errorf("reading publish records: %w", err)
		}
		fmt.Printf("Published feeds (%s):\n", st.hashes.Path())
		fmt.Println(renderTable(
			[]string{"Path", "Fingerprint", "Published"},
			publishRows(records, time.Now()),
			3,
		))

		if st.shows == nil {
			fmt.Println("\nEpisode cache disabled.")
			return nil
		}
		checkpoints, err := st.shows.GetShowCheckpoints()
		if err != nil {
			return fmt.Errorf("reading episode cache: %w", err)
		}
		fmt.Printf("\nCached shows (%s):\n", st.shows.Path())
		fmt.Println(renderTable(
			[]string{"Show", "Episodes", "Saved"},
			checkpointRows(checkpoints, time.Now()),
			2, 3,
		))

		if st.podcasts != nil {
			snaps, err := st.podcasts.GetFeedSnapshots()
			if err != nil {
				return fmt.Errorf("reading feed snapshots: %w", err)
			}
			fmt.Printf("\nStored feeds: %d\n", len(snaps))
		}
		return nil
	},
}

func publishRows(records map[string]database.PublishRecord, now time.Time) [][]string {
	paths := make([]string, 0, len(records))
	for p := range records {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	rows := make([][]string, 0, len(paths))
	for _, p := range paths {
		r := records[p]
		fp := r.Fingerprint
		if len(fp) > 12 {
			fp = fp[:12]
		}
		rows = append(rows, []string{p, fp, relative(r.PublishedAt, now)})
	}
	return rows
}

func checkpointRows(checkpoints []database.ShowCheckpoint, now time.Time) [][]string {
	rows := make([][]string, 0, len(checkpoints))
	for _, c := range checkpoints {
		rows = append(rows, []string{c.ShowKey, strconv.Itoa(c.EpisodeCount), relative(c.SavedAt, now)})
	}
	return rows
}

func relative(stamp string, now time.Time) string {
	t, err := time.Parse(time.RFC3339, stamp)
	if err != nil {
		return stamp
	}
	return humanize.RelTime(t, now, "ago", "from now")
}

// --- inspect command ---

var inspectCmd = &cobra.Command{
	Use:   "inspect FILE|URL",
	Short: "Parse a published feed and list its episodes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		src := args[0]
		var (
			f   *feed.Feed
			err error
		)
		if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
			f, err = feed.ParseURL(cmd.Context(), src)
		} else {
			var file *os.File
			file, err = os.Open(src)
			if err != nil {
				return err
			}
			defer file.Close()
			f, err = feed.Parse(file)
		}
		if err != nil {
			return err
		}

		fmt.Printf("%s (%s)\n", f.Name, f.Website)
		if f.Category != "" {
			fmt.Printf("Category: %s\n", f.Category)
		}
		rows := make([][]string, 0, len(f.Episodes))
		for _, e := range f.Episodes {
			published := ""
			if !e.Published.IsZero() {
				published = e.Published.Format("2006-01-02 15:04")
			}
			rows = append(rows, []string{published, e.Title, e.MediaURL})
		}
		fmt.Println(renderTable([]string{"Published", "Title", "Audio"}, rows))
		fmt.Printf("%d episodes\n", len(f.Episodes))
		return nil
	},
}
