package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/fatih/color"

	"example.com/qhook/internal/config"
	"example.com/qhook/pkg/qcsapi"
	"example.com/qhook/pkg/qeclient"
)

var header = color.New(color.FgCyan, color.Bold)

func usage() {
	fmt.Fprintf(os.Stderr, `usage: qhook [flags] <command>

commands:
  apps                      список приложений тенанта
  sheets [appID]            листы документа
  objects <sheetID> [appID] объекты листа
  table <objectID> [appID]  таблица гиперкуба объекта
  eval <expr> [appID]       вычислить выражение
  import <file> [name]      импортировать .qvf (с перезаписью)

flags:
`)
	flag.PrintDefaults()
}

func main() {
	cfgPath := flag.String("config", "conf/qhook.toml", "путь к конфигурации")
	verbose := flag.Bool("v", false, "подробные логи")
	flag.Usage = usage
	flag.Parse()
	if *verbose {
		log.SetLevel(log.DebugLevel)
	}

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch cmd, rest := args[0], args[1:]; cmd {
	case "apps":
		err = cmdApps(cfg)
	case "sheets":
		err = cmdSheets(ctx, cfg, appID(rest, 0, cfg))
	case "objects":
		if len(rest) < 1 {
			log.Fatal("objects: нужен sheetID")
		}
		err = cmdObjects(ctx, cfg, rest[0], appID(rest, 1, cfg))
	case "table":
		if len(rest) < 1 {
			log.Fatal("table: нужен objectID")
		}
		err = cmdTable(ctx, cfg, rest[0], appID(rest, 1, cfg))
	case "eval":
		if len(rest) < 1 {
			log.Fatal("eval: нужно выражение")
		}
		err = cmdEval(ctx, cfg, rest[0], appID(rest, 1, cfg))
	case "import":
		if len(rest) < 1 {
			log.Fatal("import: нужен файл")
		}
		name := ""
		if len(rest) > 1 {
			name = rest[1]
		}
		err = cmdImport(cfg, rest[0], name)
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatal(err)
	}
}

// appID — позиционный аргумент либо app_id из конфигурации.
func appID(args []string, idx int, cfg qeclient.Config) string {
	if len(args) > idx {
		return args[idx]
	}
	return cfg.AppID
}

// openDoc — сессия + открытый документ одной операцией.
func openDoc(ctx context.Context, cfg qeclient.Config, app string) (*qeclient.Session, *qeclient.Doc, error) {
	s := qeclient.New(cfg)
	if err := s.Connect(ctx, app); err != nil {
		return nil, nil, err
	}
	doc, err := s.OpenDoc(app)
	if err != nil {
		s.Disconnect()
		return nil, nil, err
	}
	return s, doc, nil
}

func cmdApps(cfg qeclient.Config) error {
	c := qcsapi.New(cfg.TenantURL, cfg.APIKey)
	apps, err := c.AllApps()
	if err != nil {
		return err
	}
	header.Println("ID\tNAME")
	for _, a := range apps {
		fmt.Printf("%s\t%s\n", a.ResourceID, a.Name)
	}
	return nil
}

func cmdSheets(ctx context.Context, cfg qeclient.Config, app string) error {
	s, doc, err := openDoc(ctx, cfg, app)
	if err != nil {
		return err
	}
	defer s.Disconnect()

	sheets, err := doc.Sheets()
	if err != nil {
		return err
	}
	header.Println("ID\tTITLE")
	for _, sh := range sheets {
		fmt.Printf("%s\t%s\n", sh.ID, sh.Title)
	}
	return nil
}

func cmdObjects(ctx context.Context, cfg qeclient.Config, sheetID, app string) error {
	s, doc, err := openDoc(ctx, cfg, app)
	if err != nil {
		return err
	}
	defer s.Disconnect()

	objs, err := doc.SheetObjects(sheetID)
	if err != nil {
		return err
	}
	header.Println("ID\tTYPE")
	for _, o := range objs {
		fmt.Printf("%s\t%s\n", o.ID, o.Type)
	}
	return nil
}

func cmdTable(ctx context.Context, cfg qeclient.Config, objectID, app string) error {
	s, doc, err := openDoc(ctx, cfg, app)
	if err != nil {
		return err
	}
	defer s.Disconnect()

	obj, err := doc.Object(objectID)
	if err != nil {
		return err
	}
	table, err := obj.Table()
	if err != nil {
		return err
	}
	header.Println(strings.Join(table.Headers, "\t"))
	for _, row := range table.Rows {
		fmt.Println(strings.Join(row.Text, "\t"))
	}
	return nil
}

func cmdEval(ctx context.Context, cfg qeclient.Config, expr, app string) error {
	s, doc, err := openDoc(ctx, cfg, app)
	if err != nil {
		return err
	}
	defer s.Disconnect()

	v, err := doc.Evaluate(expr)
	if err != nil {
		return err
	}
	fmt.Println(v)
	return nil
}

func cmdImport(cfg qeclient.Config, path, name string) error {
	c := qcsapi.New(cfg.TenantURL, cfg.APIKey)
	app, err := c.ImportAppOverwrite(path, name)
	if err != nil {
		return err
	}
	fmt.Printf("%s\t%s\n", app.ResourceID, app.Name)
	return nil
}
