package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/pflag"

	"github.com/semmidev/oraexport/internal/config"
	"github.com/semmidev/oraexport/internal/domain"
	"github.com/semmidev/oraexport/internal/usecase"
)

const usageHeader = `Usage: oraexport -c CDB [-p PDB] [-n] [-P N] [-t TNS_ADMIN] [-k]
                 [-s a,b | -T schema.table,...] [-d DIR] [-z]
                 [--config FILE] [--schedule CRON]

Runs a Data Pump export of a container database or one of its pluggable
databases. A failed export job exits 0 and is reported; any other failure
exits 1.

`

var errHelp = pflag.ErrHelp

type options struct {
	fs *pflag.FlagSet

	cdb        string
	pdb        string
	noNotify   bool
	parallel   int
	skipChecks bool
	schemas    []string
	tables     []string
	configPath string
	schedule   string
	list       bool
}

func newFlagSet(out io.Writer) *options {
	o := &options{fs: pflag.NewFlagSet("oraexport", pflag.ContinueOnError)}
	fs := o.fs
	fs.SetOutput(out)
	fs.SortFlags = false

	fs.StringVarP(&o.cdb, "cdb", "c", "", "container database SID (required)")
	fs.StringVarP(&o.pdb, "pdb", "p", "", "pluggable database to export instead of the container")
	fs.BoolVarP(&o.noNotify, "no-notify", "n", false, "do not send the run report")
	fs.IntVarP(&o.parallel, "parallel", "P", domain.DefaultParallelism, "Data Pump worker count (1-10)")
	fs.StringP("tns-admin", "t", "", "TNS_ADMIN directory holding the PDB network alias")
	fs.BoolVarP(&o.skipChecks, "skip-checks", "k", false, "skip the schema/table existence precheck")
	fs.StringSliceVarP(&o.schemas, "schemas", "s", nil, "comma separated schemas to export")
	fs.StringSliceVarP(&o.tables, "tables", "T", nil, "comma separated schema.table list to export")
	fs.StringP("dir", "d", "", "export work directory")
	fs.BoolP("compress", "z", false, "bundle the dump files into a tar.gz archive")
	fs.StringVar(&o.configPath, "config", config.DefaultPath, "path to config file")
	fs.StringVar(&o.schedule, "schedule", "", "repeat the export on this cron spec (with seconds) until interrupted")
	fs.BoolVar(&o.list, "list", false, "list registered instances and exit")

	fs.Usage = func() {
		fmt.Fprint(out, usageHeader)
		fs.PrintDefaults()
	}
	return o
}

// parse checks only what needs no configuration; scope, target and
// parallelism rules are enforced when the run context is built.
func (o *options) parse(args []string) error {
	if err := o.fs.Parse(args); err != nil {
		return err
	}
	if o.fs.NArg() > 0 {
		return fmt.Errorf("unexpected arguments: %v", o.fs.Args())
	}
	if o.list {
		return nil
	}
	if o.cdb == "" {
		return errors.New("-c/--cdb is required")
	}
	return nil
}

// request builds the run request. The tns-admin, dir and compress flags
// reach the request through cfg, which has them bound.
func (o *options) request(cfg *config.Config) usecase.Request {
	parallel := cfg.Export.Parallelism
	if o.fs.Changed("parallel") {
		parallel = o.parallel
	}
	return usecase.Request{
		CDB:         o.cdb,
		PDB:         o.pdb,
		Schemas:     o.schemas,
		Tables:      o.tables,
		Parallelism: parallel,
		WorkDir:     cfg.Export.WorkDir,
		TNSAdmin:    cfg.Oracle.TNSAdmin,
		SkipChecks:  o.skipChecks,
		Notify:      !o.noNotify,
		Compress:    cfg.Export.Compress,
	}
}
