package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"runtime/pprof"
	"strings"

	plt "github.com/phil-mansfield/pyplot"

	"github.com/phil-mansfield/polycrys/io"
	"github.com/phil-mansfield/polycrys/logging"
	"github.com/phil-mansfield/polycrys/stats"
	"github.com/phil-mansfield/polycrys/synth"
)

type FileGroup struct {
	log, prof *os.File
}

func (fg *FileGroup) Close() {
	if fg.log != nil {
		err := fg.log.Close()
		if err != nil {
			log.Fatal(err.Error())
		}
	}

	if fg.prof != nil {
		pprof.StopCPUProfile()
		err := fg.prof.Close()
		if err != nil {
			log.Fatal(err.Error())
		}
	}
}

func main() {
	var (
		synthesize    string
		exampleConfig string
	)
	vars := map[string]*string{
		"Synthesize":    &synthesize,
		"ExampleConfig": &exampleConfig,
	}

	flag.StringVar(
		&synthesize, "Synthesize", "",
		"Configuration file for [Synthesize] mode.",
	)
	flag.StringVar(
		&exampleConfig,
		"ExampleConfig", "", "Prints an example configuration file of the "+
			"specified type to stdout. The only accepted argument is "+
			"'Synthesis'.",
	)

	flag.Parse()

	modeName, err := getModeName(vars)
	if err != nil {
		log.Fatal(err.Error())
	}

	switch modeName {
	case "Synthesize":
		wrap, err := io.ReadSynthesisConfig(synthesize)
		if err != nil {
			log.Fatal(err.Error())
		}
		if err := wrap.Check(); err != nil {
			log.Fatal(err.Error())
		}
		synthesizeMain(wrap)

	case "ExampleConfig":
		switch exampleConfig {
		case "Synthesis":
			fmt.Println(io.ExampleSynthesisFile)
		default:
			log.Fatal(
				"Unrecognized 'ExampleConfig' argument. The only recognized " +
					"argument is 'Synthesis'.",
			)
		}
	default:
		panic("Impossible")
	}
}

func synthesizeMain(wrap *io.SynthesisWrapper) {
	fg := setupFiles(&wrap.Output)
	defer fg.Close()

	mode, err := logging.ParseFlag(wrap.Output.Verbosity)
	if err != nil {
		log.Fatal(err.Error())
	}
	logging.Mode = mode
	logOut := os.Stderr
	if fg.log != nil {
		logOut = fg.log
	}
	logger := logging.New(logOut, logging.Mode)

	cfg, err := wrap.Config()
	if err != nil {
		log.Fatal(err.Error())
	}
	tables, err := stats.Load(
		wrap.Tables.Paths(), cfg.Structure, wrap.Tables.EulerDegrees,
	)
	if err != nil {
		log.Fatal(err.Error())
	}

	res, err := synth.Run(context.Background(), cfg, tables, logger)
	if err != nil {
		log.Fatal(err.Error())
	}
	if err := io.WriteAll(&wrap.Output, res, tables); err != nil {
		log.Fatal(err.Error())
	}
	if wrap.Output.ValidPlotDir() {
		plt.Execute()
	}

	fmt.Printf(
		"Built %d grains in a %d x %d x %d domain (seed %d) with %d warnings.\n",
		len(res.Grains), res.Grid.Fine.Width[0], res.Grid.Fine.Width[1],
		res.Grid.Fine.Width[2], res.Seed, len(res.Warnings),
	)
	if logging.Mode == logging.Debug {
		logger.Debug("finished", "memory", logging.MemString())
	}
}

func setupFiles(con *io.OutputConfig) *FileGroup {
	fg := &FileGroup{}
	var err error
	if con.ValidLogFile() {
		fg.log, err = os.Create(con.LogFile)
		if err != nil {
			log.Fatal(err.Error())
		}
	}
	if con.ValidProfileFile() {
		fg.prof, err = os.Create(con.ProfileFile)
		if err != nil {
			log.Fatal(err.Error())
		}
		pprof.StartCPUProfile(fg.prof)
	}
	return fg
}

func getModeName(vars map[string]*string) (string, error) {
	setNames := []string{}

	for name, varPtr := range vars {
		if *varPtr != "" {
			setNames = append(setNames, name)
		}
	}

	if len(setNames) == 0 {
		return "", fmt.Errorf("No flags have been set.")
	}

	if len(setNames) > 1 {
		return "", fmt.Errorf(
			"The following flags were set: %s, but polycrys "+
				"only accepts one flag at a time.",
			strings.Join(setNames, ", "),
		)
	}

	return setNames[0], nil
}
