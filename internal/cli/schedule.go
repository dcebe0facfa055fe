package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shaiso/scriptsched/internal/domain"
	"github.com/shaiso/scriptsched/internal/mq"
	"github.com/shaiso/scriptsched/internal/store"
	"github.com/shaiso/scriptsched/internal/telemetry"
)

// NewScheduleCmd создаёт группу команд для управления schedules.
// amqpURLFn возвращает URL брокера для watch (флаг --amqp-url имеет приоритет).
func NewScheduleCmd(clientFn func() *Client, outputFn func() *Output, amqpURLFn func() string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Manage script schedules",
	}

	cmd.AddCommand(
		newScheduleListCmd(clientFn, outputFn),
		newScheduleShowCmd(clientFn, outputFn),
		newScheduleCreateCmd(clientFn, outputFn),
		newScheduleUpdateCmd(clientFn, outputFn),
		newScheduleDeleteCmd(clientFn, outputFn),
		newScheduleByScriptCmd(clientFn, outputFn),
		newScheduleWatchCmd(clientFn, outputFn, amqpURLFn),
	)

	return cmd
}

func newScheduleListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var script string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List schedules",
		RunE: func(cmd *cobra.Command, args []string) error {
			st := newStore(clientFn(), slog.Default())
			if err := st.FetchSchedules(cmd.Context(), store.FetchOptions{ScriptName: script}); err != nil {
				return err
			}

			outputFn().Schedules(st.Schedules())
			return nil
		},
	}

	cmd.Flags().StringVar(&script, "script", "", "Filter by script name")

	return cmd
}

func newScheduleShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show schedule details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			record, err := clientFn().GetSchedule(cmd.Context(), domain.JobID(args[0]))
			if err != nil {
				return err
			}

			out := outputFn()
			if out.jsonMode {
				out.JSON(record)
				return nil
			}

			var sched json.RawMessage
			record.Field("schedule", &sched)
			out.Table(
				[]string{"FIELD", "VALUE"},
				[][]string{
					{"id", record.ID.String()},
					{"script_name", record.ScriptName},
					{"user", record.StringField("user")},
					{"next_execution", record.StringField("next_execution")},
					{"schedule", string(sched)},
				},
			)
			return nil
		},
	}
}

func newScheduleCreateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var scheduleJSON string
	var params []string
	var user string

	cmd := &cobra.Command{
		Use:   "create SCRIPT",
		Short: "Create a schedule for a script",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			if user != "" {
				client = client.withUser(user)
			}

			if !json.Valid([]byte(scheduleJSON)) {
				return fmt.Errorf("--schedule is not valid JSON")
			}

			values, err := parseParams(params)
			if err != nil {
				return err
			}

			id, err := client.CreateSchedule(cmd.Context(), CreateScheduleRequest{
				ScriptName:      args[0],
				ParameterValues: values,
				Schedule:        json.RawMessage(scheduleJSON),
			})
			if err != nil {
				return err
			}

			out := outputFn()
			out.Success(fmt.Sprintf("Schedule created: %s", id))
			if out.jsonMode {
				out.JSON(createScheduleResponse{ID: id})
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&scheduleJSON, "schedule", "", "Schedule config as JSON (required)")
	cmd.Flags().StringArrayVar(&params, "param", nil, "Parameter value as KEY=VALUE (repeatable)")
	cmd.Flags().StringVar(&user, "user", "", "Owner of the schedule (X-User header)")
	cmd.MarkFlagRequired("schedule")

	return cmd
}

func newScheduleUpdateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var scheduleJSON string
	var file string

	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Replace the schedule config of a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data := []byte(scheduleJSON)
			if file != "" {
				b, err := os.ReadFile(file)
				if err != nil {
					return fmt.Errorf("read schedule file: %w", err)
				}
				data = b
			}
			if !json.Valid(data) {
				return fmt.Errorf("schedule is not valid JSON")
			}

			jobID := domain.JobID(args[0])
			st := newStore(clientFn(), slog.Default())
			if err := st.UpdateSchedule(cmd.Context(), jobID, json.RawMessage(data)); err != nil {
				return err
			}

			out := outputFn()
			out.Success(fmt.Sprintf("Schedule updated: %s", jobID))
			for _, r := range st.Schedules() {
				if r.ID == jobID {
					out.Schedules([]domain.ScheduleRecord{r})
					break
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&scheduleJSON, "schedule", "", "New schedule config as JSON")
	cmd.Flags().StringVar(&file, "file", "", "Read the schedule config from a file")
	cmd.MarkFlagsOneRequired("schedule", "file")
	cmd.MarkFlagsMutuallyExclusive("schedule", "file")

	return cmd
}

func newScheduleDeleteCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st := newStore(clientFn(), slog.Default())
			if err := st.DeleteSchedule(cmd.Context(), domain.JobID(args[0])); err != nil {
				return err
			}

			outputFn().Success(fmt.Sprintf("Schedule deleted: %s", args[0]))
			return nil
		},
	}
}

func newScheduleByScriptCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "by-script NAME",
		Short: "Load all schedules and show those of one script",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st := newStore(clientFn(), slog.Default())
			if err := st.FetchSchedules(cmd.Context(), store.FetchOptions{}); err != nil {
				return err
			}

			outputFn().Schedules(st.SchedulesByScript(args[0]))
			return nil
		},
	}
}

func newScheduleWatchCmd(clientFn func() *Client, outputFn func() *Output, amqpURLFn func() string) *cobra.Command {
	var script string
	var amqpURL string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print schedules again on every change event",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if amqpURL == "" {
				amqpURL = amqpURLFn()
			}

			logger := slog.Default()
			out := outputFn()
			st := newStore(clientFn(), logger)
			opts := store.FetchOptions{ScriptName: script}

			if err := st.FetchSchedules(ctx, opts); err != nil {
				return err
			}
			out.Schedules(st.Schedules())

			conn, err := mq.NewConnection(amqpURL, logger, mq.WithConnectionName("scriptsched-watch"))
			if err != nil {
				return fmt.Errorf("connect to RabbitMQ: %w", err)
			}
			defer conn.Close()

			consumer := mq.NewConsumer(conn, logger, mq.ConsumerConfig{
				Exchange: mq.ExchangeSchedules,
				Handler:  watchHandler(st, opts, out, logger),
			})

			err = consumer.Start(ctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	cmd.Flags().StringVar(&script, "script", "", "Only react to changes of this script")
	cmd.Flags().StringVar(&amqpURL, "amqp-url", "", "RabbitMQ URL (default from config)")

	return cmd
}

// newStore создаёт store команды. Команда — единственный store процесса,
// поэтому ей отдаётся общий gauge.
func newStore(client *Client, logger *slog.Logger) *store.ScheduleStore {
	return store.New(client, logger, store.WithSchedulesGauge(telemetry.StoreSchedules))
}

// watchHandler обновляет store по событию и печатает список.
// Ошибка обновления только логируется: событие уже устарело.
func watchHandler(st *store.ScheduleStore, opts store.FetchOptions, out *Output, logger *slog.Logger) mq.Handler {
	return func(ctx context.Context, d *mq.Delivery) error {
		event, err := mq.ParsePayload[mq.ScheduleEventPayload](&d.Message)
		if err != nil {
			return err
		}
		if opts.ScriptName != "" && event.ScriptName != opts.ScriptName {
			return nil
		}

		if err := st.FetchSchedules(ctx, opts); err != nil {
			logger.Warn("refresh after event failed", "type", d.Message.Type, "job_id", event.JobID, "error", err)
			return nil
		}

		out.Success(fmt.Sprintf("%s %s", d.Message.Type, event.JobID))
		out.Schedules(st.Schedules())
		return nil
	}
}

// parseParams разбирает KEY=VALUE. Значение, похожее на JSON, декодируется.
func parseParams(kvs []string) (map[string]any, error) {
	if len(kvs) == 0 {
		return nil, nil
	}

	values := make(map[string]any, len(kvs))
	for _, kv := range kvs {
		key, raw, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid param format %q, expected KEY=VALUE", kv)
		}

		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			v = raw
		}
		values[key] = v
	}
	return values, nil
}
