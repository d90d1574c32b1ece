package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
	"time"

	"wisefido-guardian/internal/config"
	"wisefido-guardian/internal/database"
	"wisefido-guardian/internal/models"
	"wisefido-guardian/internal/permission"
	"wisefido-guardian/internal/repository"

	"go.uber.org/zap"
)

// 用法: guardian-inspect <subject_id>
// 打印受监护人的护理圈、每位护理人的有效权限、通知偏好以及未确认报警
func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: guardian-inspect <subject_id>")
		os.Exit(2)
	}
	subjectID := os.Args[1]

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	logger := zap.NewNop()
	circleRepo := repository.NewCareCircleRepository(db, logger)
	prefRepo := repository.NewPreferenceRepository(db, logger)
	alertRepo := repository.NewAlertRepository(db, logger)
	baselineRepo := repository.NewBaselineRepository(db, logger)
	checker := permission.NewChecker(circleRepo)

	links, err := circleRepo.ListLinksBySubject(ctx, subjectID)
	if err != nil {
		log.Fatalf("Failed to query care circle: %v", err)
	}

	fmt.Printf("=== Care circle of %s (%d links) ===\n\n", subjectID, len(links))
	for _, link := range links {
		fmt.Printf("Caregiver: %s\n", link.CaregiverID)
		fmt.Printf("  Status:    %s\n", link.Status)
		fmt.Printf("  Joined at: %s\n", link.JoinedAt.Format("2006-01-02 15:04:05"))

		perms, err := checker.GetEffectivePermissions(ctx, link.CaregiverID, subjectID)
		if err != nil {
			log.Fatalf("Failed to resolve permissions: %v", err)
		}
		fmt.Println("  Effective permissions:")
		if perms == nil {
			perms = &models.PermissionSet{}
			fmt.Println("    (link not active, nothing granted)")
		}
		for _, c := range models.AllCategories {
			mark := "-"
			if perms.Allows(c) {
				mark = "✓"
			}
			fmt.Printf("    %s %s\n", mark, c)
		}
		if len(link.WriteGrants) > 0 {
			grants := make([]string, len(link.WriteGrants))
			for i, g := range link.WriteGrants {
				grants[i] = string(g)
			}
			fmt.Printf("  Write grants: %s\n", strings.Join(grants, ", "))
		}

		prefs, err := prefRepo.GetPreferences(ctx, link.CaregiverID)
		if err != nil {
			log.Fatalf("Failed to query preferences: %v", err)
		}
		printPreferences(prefs)
		fmt.Println()
	}

	baseline, err := baselineRepo.GetBaseline(ctx, subjectID)
	if err != nil {
		log.Fatalf("Failed to query baseline: %v", err)
	}
	fmt.Println("=== Baseline ===")
	if len(baseline) == 0 {
		fmt.Println("  (population defaults)")
	}
	metrics := make([]string, 0, len(baseline))
	for m := range baseline {
		metrics = append(metrics, string(m))
	}
	sort.Strings(metrics)
	for _, m := range metrics {
		fmt.Printf("  %-18s %s\n", m, baseline[models.Metric(m)])
	}

	open, err := alertRepo.ListOpenBySubject(ctx, subjectID, time.Time{})
	if err != nil {
		log.Fatalf("Failed to query alerts: %v", err)
	}
	fmt.Printf("\n=== Open alerts (%d) ===\n", len(open))
	for _, a := range open {
		escalated := ""
		if a.Escalated {
			escalated = " [escalated]"
		}
		fmt.Printf("  %s  %-8s %-15s %s%s\n    %s\n",
			a.Timestamp.Format("2006-01-02 15:04:05"), a.Severity, a.Type, a.ID, escalated, a.Message)
	}
}

func printPreferences(prefs *models.RecipientPreferences) {
	if prefs == nil || len(prefs.ByType) == 0 {
		fmt.Println("  Preferences: (none, all alerts via push)")
		return
	}
	fmt.Println("  Preferences:")
	types := make([]string, 0, len(prefs.ByType))
	for t := range prefs.ByType {
		types = append(types, string(t))
	}
	sort.Strings(types)
	for _, t := range types {
		p := prefs.ByType[models.AlertType(t)]
		if !p.Enabled {
			fmt.Printf("    %-15s disabled\n", t)
			continue
		}
		severities := "any"
		if len(p.AllowedSeverities) > 0 {
			parts := make([]string, len(p.AllowedSeverities))
			for i, s := range p.AllowedSeverities {
				parts[i] = s.String()
			}
			severities = strings.Join(parts, ",")
		}
		channels := make([]string, 0, len(p.Channels))
		for _, c := range p.Channels {
			channels = append(channels, string(c))
		}
		if len(channels) == 0 {
			channels = append(channels, string(models.ChannelPush))
		}
		fmt.Printf("    %-15s severities=%s channels=%s\n", t, severities, strings.Join(channels, ","))
	}
}
