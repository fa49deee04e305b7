package cli

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/xiaot623/trustbook/internal/feed"
	"github.com/xiaot623/trustbook/internal/service"
)

func (a *app) postCommand() *cobra.Command {
	var (
		project  string
		in       service.PostInput
		postID   string
		unsigned bool
	)
	cmd := &cobra.Command{
		Use:   "post",
		Short: "Create a signed post, or edit one with --edit",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client(!unsigned)
			if err != nil {
				return err
			}
			if postID != "" {
				current, err := c.GetPost(cmd.Context(), postID)
				if err != nil {
					return err
				}
				doc := service.PostInput{
					Title:   current.Title,
					Content: current.Content,
					Type:    current.Type,
					Tags:    current.Tags,
				}
				if cmd.Flags().Changed("title") {
					doc.Title = in.Title
				}
				if cmd.Flags().Changed("content") {
					doc.Content = in.Content
				}
				if cmd.Flags().Changed("type") {
					doc.Type = in.Type
				}
				if cmd.Flags().Changed("tag") {
					doc.Tags = in.Tags
				}
				post, err := c.UpdatePost(cmd.Context(), postID, doc)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), post)
			}

			if project == "" {
				return errors.New("--project is required")
			}
			post, err := c.CreatePost(cmd.Context(), project, in)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), post)
		},
	}
	cmd.Flags().StringVar(&project, "project", "", "project id")
	cmd.Flags().StringVar(&in.Title, "title", "", "post title")
	cmd.Flags().StringVar(&in.Content, "content", "", "post content")
	cmd.Flags().StringVar(&in.Type, "type", "", "post type (default discussion)")
	cmd.Flags().StringSliceVar(&in.Tags, "tag", nil, "post tag, repeatable")
	cmd.Flags().StringVar(&postID, "edit", "", "edit this post instead of creating one")
	cmd.Flags().BoolVar(&unsigned, "unsigned", false, "send without a signature envelope")
	return cmd
}

func (a *app) commentCommand() *cobra.Command {
	var (
		postID   string
		in       service.CommentInput
		unsigned bool
	)
	cmd := &cobra.Command{
		Use:   "comment",
		Short: "Comment on a post",
		RunE: func(cmd *cobra.Command, args []string) error {
			if postID == "" {
				return errors.New("--post is required")
			}
			c, err := a.client(!unsigned)
			if err != nil {
				return err
			}
			comment, err := c.CreateComment(cmd.Context(), postID, in)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), comment)
		},
	}
	cmd.Flags().StringVar(&postID, "post", "", "post id")
	cmd.Flags().StringVar(&in.Content, "content", "", "comment content")
	cmd.Flags().StringVar(&in.ParentID, "parent", "", "parent comment id")
	cmd.Flags().BoolVar(&unsigned, "unsigned", false, "send without a signature envelope")
	return cmd
}

func (a *app) showCommand() *cobra.Command {
	var (
		postID  string
		project string
		limit   int
	)
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show a post and its comments, or a project's posts, with live verification",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client(false)
			if err != nil {
				return err
			}
			switch {
			case postID != "":
				post, err := c.GetPost(cmd.Context(), postID)
				if err != nil {
					return err
				}
				comments, err := c.ListComments(cmd.Context(), postID)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"post":     post,
					"comments": comments,
				})
			case project != "":
				posts, err := c.ListPosts(cmd.Context(), project, limit)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]any{"posts": posts})
			default:
				return errors.New("--post or --project is required")
			}
		},
	}
	cmd.Flags().StringVar(&postID, "post", "", "post id")
	cmd.Flags().StringVar(&project, "project", "", "project id")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum posts to list")
	return cmd
}

func (a *app) watchCommand() *cobra.Command {
	var project string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream a project's verification events",
		RunE: func(cmd *cobra.Command, args []string) error {
			if project == "" {
				return errors.New("--project is required")
			}
			c, err := a.client(false)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Watching project %s...\n", project)
			return c.Watch(ctx, project, func(event feed.Event) error {
				return printJSON(out, event)
			})
		},
	}
	cmd.Flags().StringVar(&project, "project", "", "project id")
	return cmd
}
