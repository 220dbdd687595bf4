package db

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// RunMigrateCommand handles the 'migrate' subcommand. It reads the force
// confirmation from in and writes human output to out.
func RunMigrateCommand(args []string, dbPath string, in io.Reader, out io.Writer) error {
	if len(args) < 1 {
		PrintMigrateHelp(out)
		return fmt.Errorf("missing migrate action")
	}
	action := args[0]
	if action == "help" {
		PrintMigrateHelp(out)
		return nil
	}

	database, err := OpenDB(dbPath)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()
	migrations := MigrationsFS()

	versionArg := func() (uint, error) {
		if len(args) < 2 {
			return 0, fmt.Errorf("usage: isobath migrate %s <version_number>", action)
		}
		v, err := strconv.ParseUint(args[1], 10, 32)
		if err != nil {
			return 0, fmt.Errorf("invalid version number: %s", args[1])
		}
		return uint(v), nil
	}

	switch action {
	case "up":
		if err := database.MigrateUp(migrations); err != nil {
			return err
		}
		fmt.Fprintln(out, "✓ All migrations applied successfully")

	case "down":
		if err := database.MigrateDown(migrations); err != nil {
			return err
		}
		fmt.Fprintln(out, "✓ Migration rolled back successfully")

	case "status":
		st, err := database.GetMigrationStatus(migrations)
		if err != nil {
			return err
		}
		printStatus(out, st)
		return nil

	case "version":
		v, err := versionArg()
		if err != nil {
			return err
		}
		if err := database.MigrateTo(migrations, v); err != nil {
			return err
		}
		fmt.Fprintf(out, "✓ Migrated to version %d successfully\n", v)

	case "force":
		v, err := versionArg()
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "⚠️  WARNING: Forcing migration version to %d\n", v)
		fmt.Fprintln(out, "This should only be used to recover from a dirty migration state.")
		fmt.Fprint(out, "Continue? [y/N]: ")
		answer, _ := bufio.NewReader(in).ReadString('\n')
		if a := strings.TrimSpace(answer); a != "y" && a != "Y" {
			fmt.Fprintln(out, "Aborted")
			return nil
		}
		if err := database.MigrateForce(migrations, int(v)); err != nil {
			return err
		}
		fmt.Fprintf(out, "✓ Migration version forced to %d\n", v)
		return nil

	case "baseline":
		v, err := versionArg()
		if err != nil {
			return err
		}
		if err := database.BaselineAtVersion(v); err != nil {
			return err
		}
		fmt.Fprintf(out, "✓ Database baselined at version %d\n", v)
		return nil

	default:
		fmt.Fprintf(out, "Unknown migrate action: %s\n\n", action)
		PrintMigrateHelp(out)
		return fmt.Errorf("unknown migrate action %q", action)
	}

	version, dirty, err := database.MigrateVersion(migrations)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Current version: %d (dirty: %v)\n", version, dirty)
	return nil
}

func printStatus(out io.Writer, st *MigrationStatus) {
	fmt.Fprintln(out, "=== Migration Status ===")
	fmt.Fprintf(out, "Current version: %d\n", st.CurrentVersion)
	fmt.Fprintf(out, "Latest available: %d\n", st.LatestVersion)
	fmt.Fprintf(out, "Dirty: %v\n", st.Dirty)
	fmt.Fprintf(out, "Schema migrations table exists: %v\n", st.SchemaMigrationsExists)

	switch {
	case st.Dirty:
		fmt.Fprintln(out, "\n⚠️  WARNING: Database is in a dirty state!")
		fmt.Fprintln(out, "A migration failed mid-execution. Inspect the database, then run:")
		fmt.Fprintln(out, "  isobath migrate force <version>")
	case st.Pending():
		fmt.Fprintf(out, "\n⚠️  Database is %d version(s) behind. Run 'isobath migrate up' to update.\n", st.LatestVersion-st.CurrentVersion)
	default:
		fmt.Fprintln(out, "\n✓ Database is up to date!")
	}
}

// PrintMigrateHelp displays the help message for the migrate command.
func PrintMigrateHelp(out io.Writer) {
	fmt.Fprint(out, `Database Migration Commands

Usage: isobath migrate <command> [options]

Commands:
  up              Apply all pending migrations
  down            Rollback one migration
  status          Show current migration status and version
  version <N>     Migrate to specific version N
  force <N>       Force migration version to N (recovery only)
  baseline <N>    Set migration version to N without running migrations
  help            Show this help message

Examples:
  isobath -db isobath.db migrate up
  isobath -db isobath.db migrate status
  isobath -db isobath.db migrate version 1
`)
}
