package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"lostfound/internal/registry"
	"lostfound/internal/store"
)

// auditLog is the read side of store.AuditStore.
type auditLog interface {
	Recent(ctx context.Context, limit int) ([]store.AuditEntry, error)
}

// backend is an open registry plus whatever must be released afterwards.
type backend struct {
	svc   *registry.Service
	audit auditLog
	close func()
}

// app carries the command dependencies. connect and migrate are swapped
// out in tests.
type app struct {
	out     io.Writer
	connect func(ctx context.Context) (*backend, error)
	migrate func(ctx context.Context) error

	as       string
	jsonOut  bool
	auditMax int
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:          "lnfadmin",
		Short:        "Administer the lost-and-found registry",
		SilenceUsage: true,
	}
	root.SetOut(a.out)
	root.PersistentFlags().StringVar(&a.as, "as", "", "staff username recorded as the actor of moderation commands")
	root.PersistentFlags().BoolVar(&a.jsonOut, "json", false, "print JSON instead of a table")

	root.AddCommand(
		&cobra.Command{
			Use:   "migrate",
			Short: "Apply pending database migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				if err := a.migrate(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(a.out, "migrations applied")
				return nil
			},
		},
		a.userCmd(),
		a.pendingCmd(),
		a.categoryCmd(),
		a.auditCmd(),
	)
	return root
}

// withBackend opens the registry, runs fn and releases it.
func (a *app) withBackend(ctx context.Context, fn func(*backend) error) error {
	b, err := a.connect(ctx)
	if err != nil {
		return err
	}
	if b.close != nil {
		defer b.close()
	}
	return fn(b)
}

// actor resolves --as to a staff account.
func (a *app) actor(ctx context.Context, b *backend) (registry.Actor, error) {
	if a.as == "" {
		return registry.Actor{}, errors.New("--as is required: name the staff account performing this change")
	}
	users, err := b.svc.Users(ctx)
	if err != nil {
		return registry.Actor{}, err
	}
	for _, u := range users {
		if strings.EqualFold(u.Username, a.as) {
			if !u.IsStaff() {
				return registry.Actor{}, fmt.Errorf("%s is not a staff account", u.Username)
			}
			return registry.Actor{ID: u.ID, Role: u.Role}, nil
		}
	}
	return registry.Actor{}, fmt.Errorf("no user named %q", a.as)
}

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// fieldError flattens validation errors into one line per field.
func fieldError(err error) error {
	fe := registry.FieldsOf(err)
	if fe == nil {
		return err
	}
	fields := make([]string, 0, len(fe))
	for field := range fe {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, field+": "+fe[field])
	}
	return errors.New(strings.Join(parts, "; "))
}

func (a *app) userCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "user", Short: "Manage accounts"}

	var username, email, password string
	create := &cobra.Command{
		Use:   "create-staff",
		Short: "Create a staff account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withBackend(cmd.Context(), func(b *backend) error {
				u, err := b.svc.CreateStaff(cmd.Context(), username, email, password)
				if err != nil {
					return fieldError(err)
				}
				fmt.Fprintf(a.out, "created staff user %s (%s)\n", u.Username, u.ID)
				return nil
			})
		},
	}
	create.Flags().StringVar(&username, "username", "", "login name")
	create.Flags().StringVar(&email, "email", "", "email address")
	create.Flags().StringVar(&password, "password", "", "initial password")
	for _, f := range []string{"username", "email", "password"} {
		_ = create.MarkFlagRequired(f)
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withBackend(cmd.Context(), func(b *backend) error {
				users, err := b.svc.Users(cmd.Context())
				if err != nil {
					return err
				}
				if a.jsonOut {
					return a.printJSON(users)
				}
				tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "USERNAME\tEMAIL\tROLE\t2FA")
				for _, u := range users {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%v\n", u.Username, u.Email, u.Role, u.TOTPEnabled)
				}
				return tw.Flush()
			})
		},
	}

	cmd.AddCommand(create, list)
	return cmd
}

func (a *app) pendingCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "pending", Short: "Moderate pending categories"}

	list := &cobra.Command{
		Use:   "list",
		Short: "List pending category names with their staged item counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withBackend(cmd.Context(), func(b *backend) error {
				pending, err := b.svc.PendingCategories(cmd.Context())
				if err != nil {
					return err
				}
				if a.jsonOut {
					return a.printJSON(pending)
				}
				tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tNAME\tITEMS\tSUBMITTED")
				for _, p := range pending {
					fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", p.ID, p.Name, p.ItemCount, p.CreatedAt.Format("2006-01-02"))
				}
				return tw.Flush()
			})
		},
	}

	approve := &cobra.Command{
		Use:   "approve <id>...",
		Short: "Promote pending categories and move their items",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			return a.withBackend(cmd.Context(), func(b *backend) error {
				actor, err := a.actor(cmd.Context(), b)
				if err != nil {
					return err
				}
				approvals, err := b.svc.ApprovePendingBatch(cmd.Context(), ids, actor)
				if err != nil {
					return err
				}
				failed := 0
				for _, ap := range approvals {
					if ap.Err != nil {
						failed++
						fmt.Fprintf(a.out, "%s: %v\n", ap.PendingID, ap.Err)
						continue
					}
					fmt.Fprintf(a.out, "approved %q, %d items moved\n", ap.Name, ap.Moved)
				}
				if failed > 0 {
					return fmt.Errorf("%d of %d approvals failed", failed, len(approvals))
				}
				return nil
			})
		},
	}

	reject := &cobra.Command{
		Use:   "reject <id>",
		Short: "Drop a pending category and leave its items uncategorized",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid id %q", args[0])
			}
			return a.withBackend(cmd.Context(), func(b *backend) error {
				actor, err := a.actor(cmd.Context(), b)
				if err != nil {
					return err
				}
				if err := b.svc.RejectPending(cmd.Context(), id, actor); err != nil {
					return err
				}
				fmt.Fprintln(a.out, "pending category rejected")
				return nil
			})
		},
	}

	cmd.AddCommand(list, approve, reject)
	return cmd
}

func (a *app) categoryCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "category", Short: "Manage approved categories"}

	list := &cobra.Command{
		Use:   "list",
		Short: "Print the category tree",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withBackend(cmd.Context(), func(b *backend) error {
				cats, err := b.svc.Categories(cmd.Context())
				if err != nil {
					return err
				}
				if a.jsonOut {
					return a.printJSON(cats)
				}
				for _, c := range cats {
					fmt.Fprintf(a.out, "%s%s (%d)  %s\n", strings.Repeat("  ", c.Depth), c.Name, c.ItemCount, c.ID)
				}
				return nil
			})
		},
	}

	var parent string
	create := &cobra.Command{
		Use:   "create <name>",
		Short: "Add an approved category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withBackend(cmd.Context(), func(b *backend) error {
				actor, err := a.actor(cmd.Context(), b)
				if err != nil {
					return err
				}
				c, err := b.svc.CreateCategory(cmd.Context(), registry.CategoryInput{Name: args[0], ParentID: parent}, actor)
				if err != nil {
					return fieldError(err)
				}
				fmt.Fprintf(a.out, "created category %s (%s)\n", c.Name, c.ID)
				return nil
			})
		},
	}
	create.Flags().StringVar(&parent, "parent", "", "id of the parent category")

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an empty category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid id %q", args[0])
			}
			return a.withBackend(cmd.Context(), func(b *backend) error {
				actor, err := a.actor(cmd.Context(), b)
				if err != nil {
					return err
				}
				err = b.svc.DeleteCategory(cmd.Context(), id, actor)
				if errors.Is(err, registry.ErrConflict) {
					return errors.New("category still has subcategories or items")
				}
				if err != nil {
					return err
				}
				fmt.Fprintln(a.out, "category deleted")
				return nil
			})
		},
	}

	cmd.AddCommand(list, create, del)
	return cmd
}

func (a *app) auditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show recent moderation and deletion events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withBackend(cmd.Context(), func(b *backend) error {
				entries, err := b.audit.Recent(cmd.Context(), a.auditMax)
				if err != nil {
					return err
				}
				if a.jsonOut {
					return a.printJSON(entries)
				}
				tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "WHEN\tACTOR\tACTION\tENTITY\tDETAIL")
				for _, e := range entries {
					actorName := e.ActorName
					if actorName == "" {
						actorName = "-"
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s %s\t%s\n",
						e.CreatedAt.Format("2006-01-02 15:04"), actorName, e.Action, e.EntityType, e.EntityID, e.Detail)
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().IntVar(&a.auditMax, "limit", 50, "number of events to show")
	return cmd
}

func parseIDs(args []string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(args))
	for _, arg := range args {
		id, err := uuid.Parse(arg)
		if err != nil {
			return nil, fmt.Errorf("invalid id %q", arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
