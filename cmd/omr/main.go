// Command omr manages bubble-sheet exams end to end: sheet generation,
// scan processing and grading against a local SQLite database.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"

	omr "github.com/omrkit/omr"
	"github.com/omrkit/omr/exam"
	"github.com/omrkit/omr/grading"
	"github.com/omrkit/omr/render"
	"github.com/omrkit/omr/store"
)

const usage = `usage: omr [-db file] [-v] <command> [flags]

Commands:
  create      register a new test
  tests       list tests
  generate    generate the answer sheet for a test
  sheet       export the printable sheet PDF
  preview     export a PNG preview of the sheet
  key         set the answer key from a JSON file
  scan        upload a scanned PDF or page images and process them
  jobs        list grading jobs
  grade       score a processed job
  gradebook   export the gradebook CSV
  stats       print grade statistics for a job
  demo        render a filled-in sample sheet

Run "omr <command> -h" for the command's flags.
`

func main() {
	log.SetFlags(0)
	log.SetPrefix("omr: ")

	// Optional .env next to the working directory; absence is fine.
	_ = godotenv.Load()

	var (
		dbPath  = flag.String("db", envOr("OMR_DB", "omr.db"), "sqlite database file")
		verbose = flag.Bool("v", false, "debug logging")
	)
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	omr.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, *dbPath, flag.Arg(0), flag.Args()[1:]); err != nil {
		log.Fatal(err)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func run(ctx context.Context, dbPath, command string, args []string) error {
	if command == "demo" {
		return runDemo(args)
	}

	st, err := store.Open(dbPath)
	if err != nil {
		return err
	}
	defer st.Close()

	exams, err := exam.NewManager(st)
	if err != nil {
		return err
	}
	jobs, err := grading.NewManager(st)
	if err != nil {
		return err
	}

	switch command {
	case "create":
		return runCreate(ctx, exams, args)
	case "tests":
		return runTests(ctx, exams, args)
	case "generate":
		return runGenerate(ctx, exams, args)
	case "sheet":
		return runSheet(ctx, exams, args)
	case "preview":
		return runPreview(ctx, exams, args)
	case "key":
		return runKey(ctx, exams, args)
	case "scan":
		return runScan(ctx, jobs, args)
	case "jobs":
		return runJobs(ctx, jobs, args)
	case "grade":
		return runGrade(ctx, jobs, args)
	case "gradebook":
		return runGradebook(ctx, jobs, args)
	case "stats":
		return runStats(ctx, jobs, args)
	default:
		flag.Usage()
		return fmt.Errorf("unknown command %q", command)
	}
}

func runCreate(ctx context.Context, exams *exam.Manager, args []string) error {
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	name := fs.String("name", "", "test name (required)")
	desc := fs.String("desc", "", "description")
	fs.Parse(args)
	if *name == "" {
		return fmt.Errorf("create: missing -name")
	}

	test, err := exams.Create(ctx, *name, *desc)
	if err != nil {
		return err
	}
	fmt.Println(test.ID)
	return nil
}

func runTests(ctx context.Context, exams *exam.Manager, args []string) error {
	fs := flag.NewFlagSet("tests", flag.ExitOnError)
	all := fs.Bool("all", false, "include archived tests")
	status := fs.String("status", "", "filter by status")
	fs.Parse(args)

	tests, err := exams.List(ctx, store.TestFilter{
		Status:          omr.TestStatus(strings.ToUpper(*status)),
		IncludeArchived: *all,
	})
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tCREATED\tNAME")
	for i := range tests {
		t := &tests[i]
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			t.ID, t.Status, t.CreatedAt.Local().Format(time.DateTime), t.Name)
	}
	return w.Flush()
}

func runGenerate(ctx context.Context, exams *exam.Manager, args []string) error {
	fs := flag.NewFlagSet("generate", flag.ExitOnError)
	testID := fs.String("test", "", "test ID (required)")
	questions := fs.Int("questions", 10, "number of questions (1-50)")
	options := fs.Int("options", 5, "option bubbles per question (2-8)")
	page := fs.String("page", "a4", `paper size: "a4" or "letter"`)
	idDigits := fs.Int("id-digits", 6, "student ID length (4-10)")
	orientation := fs.String("id-orientation", "vertical", `ID grid: "vertical" or "horizontal"`)
	border := fs.Bool("border", false, "draw an outer border rectangle")
	out := fs.String("out", "", "also write the sheet PDF to this file")
	fs.Parse(args)
	if *testID == "" {
		return fmt.Errorf("generate: missing -test")
	}

	test, err := exams.GenerateSheet(ctx, *testID, omr.LayoutParams{
		QuestionCount: *questions,
		PageSize:      omr.PageSize(strings.ToUpper(*page)),
		IDLength:      *idDigits,
		IDOrientation: omr.IDOrientation(strings.ToLower(*orientation)),
		Border:        *border,
	}, omr.WithOptionCount(*options))
	if err != nil {
		return err
	}
	fmt.Printf("%s %s\n", test.ID, test.Status)

	if *out != "" {
		pdf, err := exams.Sheet(ctx, *testID)
		if err != nil {
			return err
		}
		if err := os.WriteFile(*out, pdf, 0o644); err != nil {
			return err
		}
		log.Printf("sheet written to %s (%d bytes)", *out, len(pdf))
	}
	return nil
}

func runSheet(ctx context.Context, exams *exam.Manager, args []string) error {
	fs := flag.NewFlagSet("sheet", flag.ExitOnError)
	testID := fs.String("test", "", "test ID (required)")
	out := fs.String("out", "sheet.pdf", "output file")
	fs.Parse(args)
	if *testID == "" {
		return fmt.Errorf("sheet: missing -test")
	}

	pdf, err := exams.Sheet(ctx, *testID)
	if err != nil {
		return err
	}
	if err := os.WriteFile(*out, pdf, 0o644); err != nil {
		return err
	}
	log.Printf("sheet written to %s (%d bytes)", *out, len(pdf))
	return nil
}

func runPreview(ctx context.Context, exams *exam.Manager, args []string) error {
	fs := flag.NewFlagSet("preview", flag.ExitOnError)
	testID := fs.String("test", "", "test ID (required)")
	dpi := fs.Int("dpi", 0, "raster resolution (0 = default)")
	out := fs.String("out", "preview.png", "output file")
	fs.Parse(args)
	if *testID == "" {
		return fmt.Errorf("preview: missing -test")
	}

	data, err := exams.Preview(ctx, *testID, *dpi)
	if err != nil {
		return err
	}
	if err := os.WriteFile(*out, data, 0o644); err != nil {
		return err
	}
	log.Printf("preview written to %s", *out)
	return nil
}

// runKey reads a JSON array of {"question","answer","points"} rows,
// e.g. [{"question":"Q1","answer":"b"},{"question":"Q2","answer":"a,c","points":2}].
func runKey(ctx context.Context, exams *exam.Manager, args []string) error {
	fs := flag.NewFlagSet("key", flag.ExitOnError)
	testID := fs.String("test", "", "test ID (required)")
	fs.Parse(args)
	if *testID == "" {
		return fmt.Errorf("key: missing -test")
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("key: want exactly one key file argument")
	}

	data, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		return err
	}
	var inputs []omr.KeyInput
	if err := json.Unmarshal(data, &inputs); err != nil {
		return fmt.Errorf("key: parse %s: %w", fs.Arg(0), err)
	}

	test, err := exams.SetAnswerKey(ctx, *testID, inputs)
	if err != nil {
		return err
	}
	fmt.Printf("%s %s (%d questions)\n", test.ID, test.Status, len(inputs))
	return nil
}

func runScan(ctx context.Context, jobs *grading.Manager, args []string) error {
	fs := flag.NewFlagSet("scan", flag.ExitOnError)
	testID := fs.String("test", "", "test ID (required)")
	pdfPath := fs.String("pdf", "", "scanned multi-page PDF")
	fs.Parse(args)
	if *testID == "" {
		return fmt.Errorf("scan: missing -test")
	}
	if (*pdfPath == "") == (fs.NArg() == 0) {
		return fmt.Errorf("scan: want either -pdf or page image arguments")
	}

	job, err := jobs.CreateJob(ctx, *testID)
	if err != nil {
		return err
	}

	if *pdfPath != "" {
		doc, err := os.ReadFile(*pdfPath)
		if err != nil {
			return err
		}
		job, err = jobs.UploadPDF(ctx, job.ID, doc)
		if err != nil {
			return err
		}
	} else {
		images := make([][]byte, 0, fs.NArg())
		for _, path := range fs.Args() {
			img, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			images = append(images, img)
		}
		job, err = jobs.UploadImages(ctx, job.ID, images)
		if err != nil {
			return err
		}
	}

	job, err = jobs.ProcessScans(ctx, job.ID)
	if err != nil {
		return err
	}
	fmt.Printf("%s %s: %d pages, %d students, %d errors\n",
		job.ID, job.Status, job.PageCount, job.NumStudents, job.NumErrors)
	return nil
}

func runJobs(ctx context.Context, jobs *grading.Manager, args []string) error {
	fs := flag.NewFlagSet("jobs", flag.ExitOnError)
	testID := fs.String("test", "", "filter by test ID")
	status := fs.String("status", "", "filter by status")
	fs.Parse(args)

	list, err := jobs.List(ctx, store.JobFilter{
		TestID: *testID,
		Status: omr.JobStatus(strings.ToUpper(*status)),
	})
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTEST\tSTATUS\tPAGES\tSTUDENTS\tERRORS")
	for i := range list {
		j := &list[i]
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\n",
			j.ID, j.TestID, j.Status, j.PageCount, j.NumStudents, j.NumErrors)
	}
	return w.Flush()
}

func runGrade(ctx context.Context, jobs *grading.Manager, args []string) error {
	fs := flag.NewFlagSet("grade", flag.ExitOnError)
	jobID := fs.String("job", "", "job ID (required)")
	fs.Parse(args)
	if *jobID == "" {
		return fmt.Errorf("grade: missing -job")
	}

	job, err := jobs.Grade(ctx, *jobID)
	if err != nil {
		return err
	}
	stats, err := jobs.Stats(ctx, *jobID)
	if err != nil {
		return err
	}
	fmt.Printf("%s %s: %d students graded, mean %.1f%%\n",
		job.ID, job.Status, stats.Students, stats.MeanPercent)
	return nil
}

func runGradebook(ctx context.Context, jobs *grading.Manager, args []string) error {
	fs := flag.NewFlagSet("gradebook", flag.ExitOnError)
	jobID := fs.String("job", "", "job ID (required)")
	out := fs.String("out", "", "output file (default stdout)")
	fs.Parse(args)
	if *jobID == "" {
		return fmt.Errorf("gradebook: missing -job")
	}

	csv, err := jobs.Gradebook(ctx, *jobID)
	if err != nil {
		return err
	}
	if *out == "" {
		_, err := os.Stdout.Write(csv)
		return err
	}
	if err := os.WriteFile(*out, csv, 0o644); err != nil {
		return err
	}
	log.Printf("gradebook written to %s", *out)
	return nil
}

func runStats(ctx context.Context, jobs *grading.Manager, args []string) error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	jobID := fs.String("job", "", "job ID (required)")
	fs.Parse(args)
	if *jobID == "" {
		return fmt.Errorf("stats: missing -job")
	}

	stats, err := jobs.Stats(ctx, *jobID)
	if err != nil {
		return err
	}
	fmt.Printf("students      %d\n", stats.Students)
	fmt.Printf("mean score    %.1f\n", stats.MeanScore)
	fmt.Printf("min score     %.1f\n", stats.MinScore)
	fmt.Printf("max score     %.1f\n", stats.MaxScore)
	fmt.Printf("mean percent  %.1f%%\n", stats.MeanPercent)
	return nil
}

// runDemo renders a filled-in sample sheet without touching the
// database, the quickest way to eyeball layout and mark geometry.
func runDemo(args []string) error {
	fs := flag.NewFlagSet("demo", flag.ExitOnError)
	questions := fs.Int("questions", 20, "number of questions")
	dpi := fs.Int("dpi", 150, "raster resolution")
	out := fs.String("out", "demo.png", "output file")
	fs.Parse(args)

	l, err := omr.GenerateLayout(omr.LayoutParams{
		QuestionCount: *questions,
		PageSize:      omr.PageA4,
		IDLength:      6,
		IDOrientation: omr.IDVertical,
		Border:        true,
	})
	if err != nil {
		return err
	}
	p, err := render.NewRasterPainter(l.Dimensions, render.WithDPI(*dpi))
	if err != nil {
		return err
	}
	if err := render.DrawSheet(p, l, render.SheetMeta{Title: "Sample Test"}); err != nil {
		return err
	}

	answers := make(map[string]omr.Selection, len(l.Questions))
	for i, q := range l.Questions {
		answers[q.Label] = omr.NewSelection(q.Options[i%len(q.Options)].Letter)
	}
	if err := render.MarkSheet(p, l, "314159", answers); err != nil {
		return err
	}

	f, err := os.Create(*out)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := p.EncodePNG(f); err != nil {
		return err
	}
	log.Printf("demo sheet written to %s", *out)
	return nil
}
