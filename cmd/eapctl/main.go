// Command eapctl runs operator actions against the person store:
//
//	eapctl eligibility -person <id> [-as-of 2026-01-31]
//	eapctl family -person <id>
//	eapctl activate|deactivate|suspend -person <id> -reason <text> [-actor <account id>]
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"

	"eap/internal/person/app"
	"eap/internal/person/models"
	"eap/internal/person/service"
	"eap/internal/platform/config"
	"eap/internal/platform/logger"
	id "eap/pkg/domain"
	"eap/pkg/requestcontext"
)

func main() {
	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(2)
	}
	if err := run(context.Background(), os.Args[1], os.Args[2:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "eapctl:", err)
		os.Exit(1)
	}
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: eapctl <eligibility|family|activate|deactivate|suspend> -person <id> [flags]")
}

func run(ctx context.Context, command string, args []string, out io.Writer) error {
	switch command {
	case "eligibility", "family", "activate", "deactivate", "suspend":
	default:
		usage(out)
		return fmt.Errorf("unknown command %q", command)
	}

	fs := flag.NewFlagSet(command, flag.ContinueOnError)
	personFlag := fs.String("person", "", "person ID")
	asOfFlag := fs.String("as-of", "", "evaluation date (YYYY-MM-DD), defaults to today")
	reason := fs.String("reason", "", "reason recorded in the status history")
	actorFlag := fs.String("actor", "", "account ID recorded as the actor")
	if err := fs.Parse(args); err != nil {
		return err
	}
	personID, err := id.ParsePersonID(*personFlag)
	if err != nil {
		return err
	}

	ctx = requestcontext.WithRequestID(ctx, "eapctl-"+uuid.NewString())
	if *actorFlag != "" {
		actor, err := id.ParseAccountID(*actorFlag)
		if err != nil {
			return err
		}
		ctx = requestcontext.WithActor(ctx, actor)
	}

	cfg := config.FromEnv()
	a, err := app.New(ctx, cfg, logger.NewWithWriter(os.Stderr, cfg.LogLevel))
	if err != nil {
		return err
	}
	defer a.Close()
	svc := a.Service

	switch command {
	case "eligibility":
		asOf := time.Now()
		if *asOfFlag != "" {
			if asOf, err = time.Parse(time.DateOnly, *asOfFlag); err != nil {
				return fmt.Errorf("invalid -as-of: %w", err)
			}
		}
		res, err := svc.Evaluate(ctx, personID, asOf)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "eligible=%t reason=%q\n", res.Eligible, res.Reason)
		for _, b := range res.Branches {
			fmt.Fprintf(out, "  %s eligible=%t reason=%q\n", b.Role, b.Eligible, b.Reason)
		}
	case "family":
		unit, err := svc.GetFamilyUnit(ctx, personID)
		if err != nil {
			return err
		}
		for _, p := range unit {
			fmt.Fprintf(out, "%s %s %s\n", p.ID, p.Type(), p.Status)
		}
	case "activate", "deactivate", "suspend":
		transition := lifecycle(svc, command)
		p, err := transition(ctx, personID, *reason)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s status=%s\n", p.ID, p.Status)
	}
	return nil
}

func lifecycle(svc *service.Service, command string) func(context.Context, id.PersonID, string) (*models.Person, error) {
	switch command {
	case "activate":
		return svc.Activate
	case "deactivate":
		return svc.Deactivate
	default:
		return svc.Suspend
	}
}
