// Command consolidate merges duplicate company registry rows whose names are
// spelling variants of one company. Dry-run by default; -apply deletes after
// an interactive confirmation.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/aldirahman/toolradar/internal/repository"
	"github.com/aldirahman/toolradar/internal/usecase"
	"github.com/joho/godotenv"
)

func main() {
	apply := flag.Bool("apply", false, "delete duplicate rows instead of only printing the plan")
	yes := flag.Bool("yes", false, "skip the confirmation prompt (for cron use)")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("Could not load .env file")
	}

	db, err := repository.Connect()
	if err != nil {
		log.Fatal(err)
	}

	uc := usecase.NewConsolidateUsecase(repository.NewDetectionRepository(db))

	groups, err := uc.Plan()
	if err != nil {
		log.Fatal(err)
	}
	if len(groups) == 0 {
		fmt.Println("No duplicates found.")
		return
	}

	for _, g := range groups {
		fmt.Printf("%s (%s): keep %q from %s\n", g.Key, g.Tool, g.Keep.Company, g.Keep.IdentifiedAt.Format("2006-01-02"))
		for _, d := range g.Remove {
			fmt.Printf("  remove %q from %s (%s confidence)\n", d.Company, d.IdentifiedAt.Format("2006-01-02"), d.Confidence)
		}
	}

	if !*apply {
		fmt.Printf("\nDry run: %d group(s) would be merged. Re-run with -apply to delete.\n", len(groups))
		return
	}

	if !*yes && !confirm(len(groups)) {
		fmt.Println("Aborted.")
		return
	}

	result, err := uc.Apply(groups)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Merged %d group(s), deleted %d row(s).\n", result.GroupsMerged, result.RowsDeleted)
}

func confirm(groups int) bool {
	fmt.Printf("\nDelete duplicates across %d group(s)? Type yes to continue: ", groups)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	return strings.TrimSpace(line) == "yes"
}
