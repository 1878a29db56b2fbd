package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/treffen/confsync/internal/model"
	"github.com/treffen/confsync/internal/schedule"
	"github.com/treffen/confsync/internal/store"
)

// ScheduleEntry is one rendered schedule row.
type ScheduleEntry struct {
	SessionID   string   `json:"session_id"`
	Title       string   `json:"title"`
	Room        string   `json:"room,omitempty"`
	Start       string   `json:"start,omitempty"`
	End         string   `json:"end,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Speakers    string   `json:"speakers,omitempty"`
	InSchedule  bool     `json:"in_schedule"`
	Reservation string   `json:"reservation"`
	Feedback    bool     `json:"feedback_submitted"`
	Conflicts   bool     `json:"conflicts_with_previous,omitempty"`
}

// ScheduleListing is the output of the schedule and search commands.
type ScheduleListing []ScheduleEntry

func (l ScheduleListing) String() string {
	if len(l) == 0 {
		return "no sessions"
	}
	var b strings.Builder
	for i, e := range l {
		if i > 0 {
			b.WriteByte('\n')
		}
		mark := " "
		if e.InSchedule {
			mark = "*"
		}
		if e.Conflicts {
			mark = "!"
		}
		when := e.Start
		if when == "" {
			when = "unscheduled"
		}
		fmt.Fprintf(&b, "%s %-20s %-22s %s", mark, e.SessionID, when, e.Title)
		if e.Room != "" {
			fmt.Fprintf(&b, " [%s]", e.Room)
		}
	}
	return b.String()
}

func listing(items []schedule.Item) ScheduleListing {
	out := make(ScheduleListing, len(items))
	for i, it := range items {
		e := ScheduleEntry{
			SessionID:   it.SessionID,
			Title:       it.Title,
			Room:        it.RoomName,
			Tags:        it.Tags,
			Speakers:    it.SpeakerNames,
			InSchedule:  it.InSchedule,
			Reservation: it.Reservation.String(),
			Feedback:    it.FeedbackSubmitted,
			Conflicts:   it.ConflictsWithPrevious,
		}
		if it.Start > 0 {
			e.Start = model.FormatInstant(it.Start)
			e.End = model.FormatInstant(it.End)
		}
		out[i] = e
	}
	return out
}

// ScheduleOptions holds flags for the schedule command.
type ScheduleOptions struct {
	*RootOptions
	View string
	From string
	To   string
	Tags []string
}

// NewScheduleCommand creates the schedule command.
func NewScheduleCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ScheduleOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "List sessions for the active account",
		Long: `List sessions ordered by start time, annotated for the active account.

Views:
  all      every session with a start time (default)
  starred  bookmarked sessions with a start time
  mine     every bookmarked session

Tags of one category are alternatives; a session must match every category
with a selected tag.

Example:
  confsync schedule --from 2016-05-18T00:00:00Z --to 2016-05-18T23:59:59Z
  confsync schedule --view starred --tag TRACK_ANDROID --tag TRACK_WEB --tag TYPE_SESSION`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := opts.query()
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid schedule query", err)
			}

			a, err := opts.openApp(cmd.Context())
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to open database", err)
			}
			defer a.Close()

			items, err := a.schedule(opts.RootOptions).Load(cmd.Context(), q)
			if err != nil {
				return WrapExitError(ExitFailure, "failed to load schedule", err)
			}
			return opts.formatter(cmd).Success(listing(items))
		},
	}

	cmd.Flags().StringVar(&opts.View, "view", "all", "view (all|starred|mine)")
	cmd.Flags().StringVar(&opts.From, "from", "", "earliest start time (RFC 3339)")
	cmd.Flags().StringVar(&opts.To, "to", "", "latest start time (RFC 3339)")
	cmd.Flags().StringSliceVar(&opts.Tags, "tag", nil, "tag id filter (repeatable)")

	return cmd
}

func (o *ScheduleOptions) query() (schedule.Query, error) {
	var start, end int64
	var err error
	if o.From != "" {
		if start, err = model.ParseInstant(o.From); err != nil {
			return nil, err
		}
	}
	if o.To != "" {
		if end, err = model.ParseInstant(o.To); err != nil {
			return nil, err
		}
	}
	filter := schedule.NewFilter(o.Tags...)
	if len(o.Tags) > 0 && filter.Empty() {
		return nil, fmt.Errorf("no valid tag ids in %v", o.Tags)
	}

	switch o.View {
	case "all":
		return schedule.AllItems{Start: start, End: end, Filter: filter}, nil
	case "starred":
		return schedule.StarredItems{Start: start, End: end, Filter: filter}, nil
	case "mine":
		if o.From != "" || o.To != "" || len(o.Tags) > 0 {
			return nil, fmt.Errorf("view mine takes no window or tags")
		}
		return schedule.MySchedule{}, nil
	default:
		return nil, fmt.Errorf("unknown view %q", o.View)
	}
}

// NewSearchCommand creates the search command.
func NewSearchCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "search <term>...",
		Short: "Search sessions by title, abstract, tags and speakers",
		Long: `Rank sessions by how well their indexed text matches the term. The index is
rebuilt after every applied sync.

Example:
  confsync search android wear`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.openApp(cmd.Context())
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to open database", err)
			}
			defer a.Close()

			items, err := a.schedule(opts).Load(cmd.Context(), schedule.Search{Term: strings.Join(args, " ")})
			if err != nil {
				return WrapExitError(ExitFailure, "search failed", err)
			}
			return opts.formatter(cmd).Success(listing(items))
		},
	}
}

// NewStarCommand creates the star command.
func NewStarCommand(opts *RootOptions) *cobra.Command {
	var remove bool

	cmd := &cobra.Command{
		Use:   "star <session-id>",
		Short: "Add a session to the active account's schedule",
		Long: `Bookmark a session for the active account, or remove the bookmark with
--remove. The row is marked dirty for upload.

Example:
  confsync star session-42
  confsync star session-42 --remove`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := opts.openApp(ctx)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to open database", err)
			}
			defer a.Close()

			if _, err := a.store.GetSession(ctx, args[0]); err != nil {
				return WrapExitError(ExitCommandError, "unknown session", err)
			}
			st, err := a.state.Load(ctx)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to read client state", err)
			}

			err = a.store.SetInSchedule(ctx, model.MySchedule{
				SessionID:  args[0],
				Account:    st.Account,
				Dirty:      true,
				InSchedule: !remove,
				Timestamp:  time.Now().UnixMilli(),
			})
			if err != nil {
				return WrapExitError(ExitFailure, "failed to update schedule", err)
			}
			if remove {
				return opts.formatter(cmd).Success("removed " + args[0])
			}
			return opts.formatter(cmd).Success("starred " + args[0])
		},
	}

	cmd.Flags().BoolVar(&remove, "remove", false, "remove the bookmark")
	return cmd
}

// TransitionReport describes an account switch.
type TransitionReport struct {
	From string `json:"from"`
	To   string `json:"to"`
	store.TransitionResult
}

func (r TransitionReport) String() string {
	return fmt.Sprintf("signed in as %s: moved %d schedule, %d feedback, %d video rows; dropped %d reservations",
		displayAccount(r.To), r.Schedule, r.FeedbackSubmitted, r.ViewedVideos, r.DroppedReservations)
}

func displayAccount(a string) string {
	if a == model.AnonymousAccount {
		return "(anonymous)"
	}
	return a
}

// NewSigninCommand creates the signin command.
func NewSigninCommand(opts *RootOptions) *cobra.Command {
	var signout bool

	cmd := &cobra.Command{
		Use:   "signin [account]",
		Short: "Switch the active account",
		Long: `Make account the active one, moving every user-scoped row (schedule,
feedback submitted, viewed videos, reservations) from the previous account.
Reservations made before sign-in are dropped. --signout switches back to the
anonymous account.

Example:
  confsync signin ada@example.com
  confsync signin --signout`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			account := model.AnonymousAccount
			switch {
			case signout && len(args) > 0:
				return NewExitError(ExitCommandError, "--signout takes no account")
			case !signout && len(args) == 0:
				return NewExitError(ExitCommandError, "account required")
			case !signout:
				account = args[0]
			}

			ctx := cmd.Context()
			a, err := opts.openApp(ctx)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to open database", err)
			}
			defer a.Close()

			prev, err := a.state.Load(ctx)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to read client state", err)
			}
			res, err := a.syncer.ReassignAccount(ctx, account)
			if err != nil {
				return WrapExitError(ExitFailure, "account switch failed", err)
			}
			return opts.formatter(cmd).Success(TransitionReport{From: prev.Account, To: account, TransitionResult: res})
		},
	}

	cmd.Flags().BoolVar(&signout, "signout", false, "switch to the anonymous account")
	return cmd
}
