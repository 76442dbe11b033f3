package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rbwalton/stepseq/internal/project"
	"github.com/rbwalton/stepseq/sequencer"
)

func init() {
	projectCmd.AddCommand(projectListCmd)
	projectCmd.AddCommand(projectSavesCmd)
	projectCmd.AddCommand(projectSaveCmd)
	projectCmd.AddCommand(projectLoadCmd)
	projectCmd.AddCommand(projectDeleteCmd)
	projectCmd.AddCommand(projectRenameCmd)
	rootCmd.AddCommand(projectCmd)
}

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Manage saved projects (snapshots of the pattern/sequence/song arena)",
}

var projectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List known projects",
	RunE: func(cmd *cobra.Command, args []string) error {
		projects, err := project.ListProjects()
		if err != nil {
			return err
		}
		for _, p := range projects {
			fmt.Println(p)
		}
		return nil
	},
}

var projectSavesCmd = &cobra.Command{
	Use:   "saves <project>",
	Short: "List saves within a project, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		saves, err := project.ListSaves(args[0])
		if err != nil {
			return err
		}
		for _, s := range saves {
			fmt.Printf("%s  %s  %s\n", s.Timestamp.Format("2006-01-02 15:04:05"), s.ID, s.Filename)
		}
		return nil
	},
}

var projectSaveCmd = &cobra.Command{
	Use:   "save <project> [name]",
	Short: "Save an empty arena as a new snapshot (a smoke test for the save path)",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := ""
		if len(args) > 1 {
			name = args[1]
		}
		manager := sequencer.NewPatternManager()
		return project.Save(args[0], name, manager)
	},
}

var projectLoadCmd = &cobra.Command{
	Use:   "load <project> [filename]",
	Short: "Load a snapshot and print a summary of what it contains",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		filename := ""
		if len(args) > 1 {
			filename = args[1]
		}
		manager, err := project.Load(args[0], filename)
		if err != nil {
			return err
		}
		fmt.Printf("loaded %d sequences\n", len(manager.Sequences()))
		return nil
	},
}

var projectDeleteCmd = &cobra.Command{
	Use:   "delete <project>",
	Short: "Delete a project and all its saves",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return project.DeleteProject(args[0])
	},
}

var projectRenameCmd = &cobra.Command{
	Use:   "rename <old> <new>",
	Short: "Rename a project",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return project.RenameProject(args[0], args[1])
	},
}
