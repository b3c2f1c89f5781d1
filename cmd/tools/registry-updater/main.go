// cmd/tools/registry-updater/main.go
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"

	"sales-insight-workers/internal/common/config"
	"sales-insight-workers/internal/common/validation"
	"sales-insight-workers/pkg/registry"
)

const defaultRegistryPath = "configs/activity-registry.json"

// analyticsTaskTypes are the task types the worker manager registers.
var analyticsTaskTypes = []string{
	config.TaskClassifyQuery,
	config.TaskRetrieveContext,
	config.TaskGenerateAnalysis,
	config.TaskSynthesizeAnswer,
	config.TaskAnswerQuestion,
}

func main() {
	if len(os.Args) < 2 {
		help(os.Stdout)
		os.Exit(1)
	}
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	switch args[0] {
	case "list":
		fs := flag.NewFlagSet("list", flag.ContinueOnError)
		path := fs.String("path", defaultRegistryPath, "Path to registry file")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		reg, err := registry.LoadRegistry(*path)
		if err != nil {
			return fmt.Errorf("failed to load registry: %w", err)
		}
		listActivities(reg, out)
		return nil

	case "update":
		fs := flag.NewFlagSet("update", flag.ContinueOnError)
		path := fs.String("path", defaultRegistryPath, "Path to registry file")
		taskType := fs.String("taskType", "", "Task type of the activity to update")
		field := fs.String("field", "", "Field to update (status, version, description, timeout, retries)")
		value := fs.String("value", "", "New value for the field")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		if *taskType == "" || *field == "" || *value == "" {
			fs.Usage()
			return fmt.Errorf("taskType, field, and value are required for update")
		}
		if err := updateActivity(*path, *taskType, *field, *value); err != nil {
			return err
		}
		fmt.Fprintf(out, "Updated activity %s, field %s to %s\n", *taskType, *field, *value)
		return nil

	case "validate":
		fs := flag.NewFlagSet("validate", flag.ContinueOnError)
		path := fs.String("path", defaultRegistryPath, "Path to registry file")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		n, err := validateRegistry(*path)
		if err != nil {
			return fmt.Errorf("registry validation failed: %w", err)
		}
		fmt.Fprintf(out, "Registry validation passed. Found %d activities.\n", n)
		return nil

	case "help", "-h", "--help":
		help(out)
		return nil

	default:
		help(out)
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func listActivities(reg *registry.ActivityRegistry, out io.Writer) {
	table := tablewriter.NewWriter(out)
	table.SetAutoFormatHeaders(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeader([]string{"Task Type", "Name", "Status", "Timeout", "Retries", "Version"})
	for _, a := range reg.Activities {
		table.Append([]string{a.TaskType, a.DisplayName, a.ImplementationStatus, a.Timeout, strconv.Itoa(a.Retries), a.Version})
	}
	table.Render()
}

func updateActivity(path, taskType, field, value string) error {
	reg, err := registry.LoadRegistry(path)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}

	activity := reg.Find(taskType)
	if activity == nil {
		return fmt.Errorf("activity with task type %s not found", taskType)
	}

	switch field {
	case "status":
		activity.ImplementationStatus = value
	case "version":
		activity.Version = value
	case "description":
		activity.Description = value
	case "timeout":
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid timeout value: %w", err)
		}
		activity.Timeout = value
	case "retries":
		retries, err := strconv.Atoi(value)
		if err != nil || retries < 0 {
			return fmt.Errorf("invalid retries value %q", value)
		}
		activity.Retries = retries
	default:
		return fmt.Errorf("unknown field: %s", field)
	}

	reg.LastUpdated = time.Now().Format(time.RFC3339)
	return registry.Save(reg, path)
}

// validateRegistry checks the registry structure, that every input schema
// compiles, and that every analytics task type is described.
func validateRegistry(path string) (int, error) {
	reg, err := registry.LoadRegistry(path)
	if err != nil {
		return 0, fmt.Errorf("failed to load registry: %w", err)
	}
	if err := reg.Validate(); err != nil {
		return 0, err
	}

	for _, a := range reg.Activities {
		if len(a.InputSchema) == 0 {
			continue
		}
		if _, err := validation.NewValidator(a.InputSchema); err != nil {
			return 0, fmt.Errorf("activity %s has an invalid input schema: %w", a.ID, err)
		}
	}
	for _, taskType := range analyticsTaskTypes {
		if reg.Find(taskType) == nil {
			return 0, fmt.Errorf("no activity registered for task type %s", taskType)
		}
	}
	return len(reg.Activities), nil
}

func help(out io.Writer) {
	fmt.Fprint(out, `
Usage: registry-updater <command> [flags]

Commands:
  list     Show the activities in the registry
  update   Update an existing activity's field
  validate Validate the registry file
  help     Show this help message

Examples:
  registry-updater list
  registry-updater update -taskType generate-analysis -field timeout -value 3m
  registry-updater validate -path configs/activity-registry.json

Use 'registry-updater <command> -h' for more information about a command.
`)
}
