package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"golang.org/x/exp/slog"

	"calmh.dev/track-import/internal/config"
	"calmh.dev/track-import/internal/gpx/writer"
	"calmh.dev/track-import/internal/importer"
	"calmh.dev/track-import/internal/isotime"
	"calmh.dev/track-import/internal/storage"
	"calmh.dev/track-import/internal/track"
)

type importCmd struct {
	config.Import `embed:""`

	Files           []string `arg:"" help:"Files to import"`
	ContinueOnError bool     `help:"Keep going when a file fails to import"`
}

func (c *importCmd) Run(ctx context.Context, logger *slog.Logger, store *storage.Store) error {
	imp := importer.New(store, c.Import.Options(), logger)
	var failed int
	for _, file := range c.Files {
		ids, err := imp.ImportFile(ctx, file)
		if err != nil {
			if !c.ContinueOnError {
				return err
			}
			logger.Error("Import failed", "file", file, "error", err)
			failed++
			continue
		}
		for _, id := range ids {
			fmt.Println(id)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(c.Files))
	}
	return nil
}

type listCmd struct{}

func (c *listCmd) Run(ctx context.Context, store *storage.Store) error {
	tracks, err := store.Tracks(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "ID\tSTART\tDURATION\tDISTANCE\tICON\tNAME\n")
	for _, t := range tracks {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.2f km\t%s\t%s\n", t.ID, t.Stats.StartTime.Local().Format(time.DateTime), t.Stats.TotalTime.Round(time.Second), t.Stats.TotalDistance/1000, t.Icon, t.Name)
	}
	return tw.Flush()
}

type showCmd struct {
	ID string `arg:"" help:"Track ID"`
}

func (c *showCmd) Run(ctx context.Context, store *storage.Store) error {
	id, err := track.ParseID(c.ID)
	if err != nil {
		return err
	}
	t, err := store.Track(ctx, id)
	if err != nil {
		return err
	}
	points, err := store.TrackPoints(ctx, id)
	if err != nil {
		return err
	}

	fmt.Printf("Name: %s\nDescription: %s\nCategory: %s\nIcon: %s\n", t.Name, t.Description, t.Category, t.Icon)
	if t.UUID != "" {
		fmt.Printf("UUID: %s\n", t.UUID)
	}
	fmt.Println()

	tw := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "TYPE\tTIME\tLATITUDE\tLONGITUDE\tALTITUDE\n")
	for _, p := range points {
		lat, lon, alt := "-", "-", "-"
		if p.HasLocation() {
			lat = fmt.Sprintf("%.6f", p.Latitude())
			lon = fmt.Sprintf("%.6f", p.Longitude())
		}
		if p.HasAltitude() {
			alt = fmt.Sprintf("%.1f", p.Altitude())
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", p.Type, isotime.Format(p.Time), lat, lon, alt)
	}
	return tw.Flush()
}

type exportCmd struct {
	ID     string `arg:"" help:"Track ID"`
	Output string `short:"o" help:"Output file (default standard output)" type:"path"`
}

func (c *exportCmd) Run(ctx context.Context, store *storage.Store) error {
	id, err := track.ParseID(c.ID)
	if err != nil {
		return err
	}
	t, err := store.Track(ctx, id)
	if err != nil {
		return err
	}
	points, err := store.TrackPoints(ctx, id)
	if err != nil {
		return err
	}
	waypoints, err := store.Waypoints(ctx, id)
	if err != nil {
		return err
	}

	if c.Output == "" {
		return writer.WriteTrack(os.Stdout, t, points, waypoints)
	}

	fd, err := os.Create(c.Output)
	if err != nil {
		return err
	}
	if err := writer.WriteTrack(fd, t, points, waypoints); err != nil {
		fd.Close()
		return err
	}
	return fd.Close()
}

type deleteCmd struct {
	IDs []string `arg:"" help:"Track IDs"`
}

func (c *deleteCmd) Run(ctx context.Context, logger *slog.Logger, store *storage.Store) error {
	for _, s := range c.IDs {
		id, err := track.ParseID(s)
		if err != nil {
			return err
		}
		if err := store.DeleteTrack(ctx, id); errors.Is(err, storage.ErrNotFound) {
			logger.Warn("No such track", "id", id)
		} else if err != nil {
			return err
		} else {
			logger.Info("Deleted track", "id", id)
		}
	}
	return nil
}
