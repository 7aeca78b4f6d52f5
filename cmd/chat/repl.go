package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/fatih/color"

	"nim-chat/internal/handlers"
	"nim-chat/internal/sampling"
	"nim-chat/internal/service"
	"nim-chat/internal/session"
)

// repl drives one chat session from a line-oriented terminal.
type repl struct {
	svc  service.ChatService
	sess *session.Session
	in   io.Reader
	out  io.Writer

	stream bool

	you       func(a ...any) string
	assistant func(a ...any) string
	failure   func(a ...any) string
	dim       func(a ...any) string
}

func newREPL(svc service.ChatService, sess *session.Session, in io.Reader, out io.Writer, stream bool) *repl {
	return &repl{
		svc:       svc,
		sess:      sess,
		in:        in,
		out:       out,
		stream:    stream,
		you:       color.New(color.FgGreen, color.Bold).SprintFunc(),
		assistant: color.New(color.FgCyan, color.Bold).SprintFunc(),
		failure:   color.New(color.FgRed, color.Bold).SprintFunc(),
		dim:       color.New(color.Faint).SprintFunc(),
	}
}

const helpText = `Commands:
  /reset                    clear the conversation
  /set <field> <value>      change a setting (model, temperature, top_p, top_k,
                            repetition_penalty, max_output_tokens)
  /config                   show the current settings
  /models                   list selectable models
  /history                  print the conversation
  /help                     show this help
  exit                      quit`

// run reads lines until EOF, "exit" or ctx is done.
func (r *repl) run(ctx context.Context) error {
	scanner := bufio.NewScanner(r.in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Fprint(r.out, r.you("You: "))
		if !scanner.Scan() {
			fmt.Fprintln(r.out)
			return scanner.Err()
		}
		if ctx.Err() != nil {
			return nil
		}

		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "":
			continue
		case trimmed == "exit" || trimmed == "quit":
			return nil
		case strings.HasPrefix(trimmed, "/"):
			r.command(ctx, trimmed)
		default:
			r.send(ctx, line)
		}
	}
}

func (r *repl) send(ctx context.Context, message string) {
	fmt.Fprint(r.out, r.assistant("Assistant: "))

	var err error
	if r.stream {
		_, err = r.svc.StreamChat(ctx, r.sess, service.ChatRequest{Message: message}, func(chunk string) error {
			_, werr := io.WriteString(r.out, chunk)
			return werr
		})
		if err == nil {
			fmt.Fprintln(r.out)
		}
	} else {
		var resp service.ChatResponse
		resp, err = r.svc.ProcessChat(ctx, r.sess, service.ChatRequest{Message: message})
		if err == nil {
			fmt.Fprintln(r.out, resp.Reply)
		}
	}
	if err != nil {
		fmt.Fprintln(r.out)
		fmt.Fprintf(r.out, "%s %s\n", r.failure("Error:"), handlers.UserMessage(err))
	}
	fmt.Fprintln(r.out)
}

func (r *repl) command(ctx context.Context, line string) {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/reset":
		r.svc.ResetChat(ctx, r.sess)
		fmt.Fprintln(r.out, r.dim("Conversation cleared."))
	case "/set":
		if len(fields) != 3 {
			fmt.Fprintln(r.out, "usage: /set <field> <value>")
			return
		}
		update, err := parseSetting(fields[1], fields[2])
		if err != nil {
			fmt.Fprintf(r.out, "%s %v\n", r.failure("Error:"), err)
			return
		}
		cfg, err := r.svc.UpdateSettings(ctx, r.sess, update)
		if err != nil {
			fmt.Fprintf(r.out, "%s %s\n", r.failure("Error:"), handlers.UserMessage(err))
			return
		}
		r.printConfig(cfg)
	case "/config":
		r.printConfig(r.sess.Config())
	case "/models":
		current := r.sess.Config().Model
		for _, model := range r.svc.Controls().Models {
			marker := " "
			if model == current {
				marker = "*"
			}
			fmt.Fprintf(r.out, " %s %s\n", marker, model)
		}
	case "/history":
		turns := r.sess.Turns()
		if len(turns) == 0 {
			fmt.Fprintln(r.out, r.dim("No messages yet."))
			return
		}
		for _, turn := range turns {
			label := r.you(turn.Role.Label() + ":")
			if turn.Role == session.RoleAssistant {
				label = r.assistant(turn.Role.Label() + ":")
			}
			fmt.Fprintf(r.out, "%s %s\n", label, turn.Content)
		}
	case "/help":
		fmt.Fprintln(r.out, helpText)
	default:
		fmt.Fprintf(r.out, "unknown command %s (try /help)\n", fields[0])
	}
}

func (r *repl) printConfig(cfg sampling.Config) {
	fmt.Fprintf(r.out, "model=%s temperature=%.2f top_p=%.2f top_k=%d repetition_penalty=%.2f max_output_tokens=%d\n",
		cfg.Model, cfg.Temperature, cfg.TopP, cfg.TopK, cfg.RepetitionPenalty, cfg.MaxOutputTokens)
}

// parseSetting turns one /set argument pair into an update.
func parseSetting(field, value string) (sampling.Update, error) {
	var update sampling.Update
	if field == "model" {
		update.Model = &value
		return update, nil
	}

	v, err := strconv.ParseFloat(value, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return update, fmt.Errorf("invalid %s: %q", field, value)
	}
	n := sampling.RoundInt(v)

	switch field {
	case "temperature":
		update.Temperature = &v
	case "top_p":
		update.TopP = &v
	case "top_k":
		update.TopK = &n
	case "repetition_penalty":
		update.RepetitionPenalty = &v
	case "max_output_tokens":
		update.MaxOutputTokens = &n
	default:
		return update, fmt.Errorf("unknown setting %q", field)
	}
	return update, nil
}
