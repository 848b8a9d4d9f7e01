package main

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"notesy/internal/editor"
	"notesy/internal/imaging"
	"notesy/internal/note"
)

var (
	listSearch   string
	listCategory string
	listTags     string
	listJSON     bool

	noteTitle    string
	noteContent  string
	noteCategory string
	noteTags     string
	noteImages   []string
	noteDrop     []int
)

var notesCmd = &cobra.Command{
	Use:   "notes",
	Short: "Manage your notes",
}

var notesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List notes, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := authedClient()
		if err != nil {
			return err
		}
		notes, err := c.ListNotes(cmd.Context(), note.Filter{
			Search:   listSearch,
			Category: listCategory,
			Tags:     note.ParseTags(listTags),
		})
		if err != nil {
			return err
		}
		if listJSON {
			return printJSON(notes)
		}
		if len(notes) == 0 {
			fmt.Println("No notes found.")
			return nil
		}
		for _, n := range notes {
			fmt.Printf("%d\t%s\t[%s]\t%s\t%d image(s)\n", n.ID, n.Title, n.Category, strings.Join(n.Tags, ","), len(n.Screenshots))
		}
		return nil
	},
}

var notesGetCmd = &cobra.Command{
	Use:   "get ID",
	Short: "Show one note",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		c, err := authedClient()
		if err != nil {
			return err
		}
		n, err := c.GetNote(cmd.Context(), id)
		if err != nil {
			return err
		}
		return printJSON(n)
	},
}

var notesCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a note with optional images",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := authedClient()
		if err != nil {
			return err
		}
		d := editor.NewDraft(imaging.NewCompressor())
		d.Title, d.Content, d.Tags = noteTitle, noteContent, noteTags
		if noteCategory != "" {
			d.Category = noteCategory
		}
		if err := attach(cmd, d); err != nil {
			return err
		}
		sub, err := d.BuildSubmission()
		if err != nil {
			return err
		}
		n, err := c.CreateNote(cmd.Context(), sub)
		if err != nil {
			return err
		}
		fmt.Printf("Created note %d with %d image(s).\n", n.ID, len(n.Screenshots))
		return nil
	},
}

var notesUpdateCmd = &cobra.Command{
	Use:   "update ID",
	Short: "Edit a note; unchanged fields keep their value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		c, err := authedClient()
		if err != nil {
			return err
		}
		cur, err := c.GetNote(cmd.Context(), id)
		if err != nil {
			return err
		}

		d := editor.EditDraft(imaging.NewCompressor(), cur)
		flags := cmd.Flags()
		if flags.Changed("title") {
			d.Title = noteTitle
		}
		if flags.Changed("content") {
			d.Content = noteContent
		}
		if flags.Changed("category") {
			d.Category = noteCategory
		}
		if flags.Changed("tags") {
			d.Tags = noteTags
		}

		// remove from the highest index so earlier positions stay valid
		drop := slices.Clone(noteDrop)
		slices.Sort(drop)
		drop = slices.Compact(drop)
		slices.Reverse(drop)
		for _, i := range drop {
			d.RemoveExisting(i)
		}

		if err := attach(cmd, d); err != nil {
			return err
		}
		sub, err := d.BuildSubmission()
		if err != nil {
			return err
		}
		n, err := c.UpdateNote(cmd.Context(), sub)
		if err != nil {
			return err
		}
		fmt.Printf("Updated note %d, now %d image(s).\n", n.ID, len(n.Screenshots))
		return nil
	},
}

var notesDeleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Delete a note and its images",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		c, err := authedClient()
		if err != nil {
			return err
		}
		if err := c.DeleteNote(cmd.Context(), id); err != nil {
			return err
		}
		fmt.Printf("Deleted note %d.\n", id)
		return nil
	},
}

// attach reads --image files into the draft. Rejected files are reported and skipped.
func attach(cmd *cobra.Command, d *editor.Draft) error {
	if len(noteImages) == 0 {
		return nil
	}
	files := make([]imaging.File, 0, len(noteImages))
	for _, p := range noteImages {
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		files = append(files, imaging.File{Name: filepath.Base(p), Type: contentType(p, data), Data: data})
	}
	for _, err := range d.AddFiles(cmd.Context(), files) {
		fmt.Fprintln(os.Stderr, "Skipped:", err)
	}
	for _, p := range d.Pending() {
		fmt.Fprintf(os.Stderr, "%s: %d bytes (%s)\n", p.File.Name, p.File.Size(), p.State)
	}
	return nil
}

func contentType(path string, data []byte) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	}
	return http.DetectContentType(data)
}

func parseID(s string) (uint64, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid note id %q", s)
	}
	return id, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	rootCmd.AddCommand(notesCmd)
	notesCmd.AddCommand(notesListCmd, notesGetCmd, notesCreateCmd, notesUpdateCmd, notesDeleteCmd)

	notesListCmd.Flags().StringVarP(&listSearch, "search", "s", "", "Search title, content and tags")
	notesListCmd.Flags().StringVarP(&listCategory, "category", "c", "", "Category, or All")
	notesListCmd.Flags().StringVarP(&listTags, "tags", "t", "", "Comma separated tags, any match")
	notesListCmd.Flags().BoolVar(&listJSON, "json", false, "Print JSON")

	for _, c := range []*cobra.Command{notesCreateCmd, notesUpdateCmd} {
		c.Flags().StringVar(&noteTitle, "title", "", "Title")
		c.Flags().StringVar(&noteContent, "content", "", "Content")
		c.Flags().StringVarP(&noteCategory, "category", "c", "", "Category")
		c.Flags().StringVarP(&noteTags, "tags", "t", "", "Comma separated tags")
		c.Flags().StringArrayVarP(&noteImages, "image", "i", nil, "Image file to attach (repeatable)")
	}
	_ = notesCreateCmd.MarkFlagRequired("title")
	_ = notesCreateCmd.MarkFlagRequired("content")
	notesUpdateCmd.Flags().IntSliceVar(&noteDrop, "drop", nil, "Zero-based index of an existing image to remove (repeatable)")
}
