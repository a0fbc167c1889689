package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"strings"
	"time"

	"github.com/asticode/go-astiav"
	"github.com/facebookincubator/go-belt"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/facebookincubator/go-belt/tool/logger/implementation/logrus"
	"github.com/spf13/pflag"
	"github.com/xaionaro-go/avtransformer"
	audiolibav "github.com/xaionaro-go/avtransformer/audio/libav"
	"github.com/xaionaro-go/avtransformer/avconv"
	muxerlibav "github.com/xaionaro-go/avtransformer/muxer/libav"
	sourcelibav "github.com/xaionaro-go/avtransformer/source/libav"
	"github.com/xaionaro-go/avtransformer/types"
	"github.com/xaionaro-go/observability"
	"github.com/xaionaro-go/secret"
)

type listener struct {
	logger logger.Logger
}

func (l listener) OnCompleted(ctx context.Context, result types.TransformationResult) {
	b, err := json.Marshal(result)
	if err != nil {
		l.logger.Fatal(err)
	}
	fmt.Printf("completed: %s\n", b)
}

func (l listener) OnError(ctx context.Context, result types.TransformationResult, err *types.ErrTransformation) {
	l.logger.Errorf("the transformation failed: %v", err)
}

func (l listener) OnFallbackApplied(ctx context.Context, original, fallback types.TransformationRequest) {
	l.logger.Warnf("the request %s is not supported, using %s instead", original, fallback)
}

func main() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "syntax: %s [options] <URL-from> <URL-to>\n", os.Args[0])
		pflag.PrintDefaults()
	}

	loggerLevel := logger.LevelWarning
	pflag.Var(&loggerLevel, "log-level", "Log level")
	configPath := pflag.String("config", "", "path to a YAML file with the transformation config")
	inputFormat := pflag.String("input-format", "", "force the input container format")
	outputFormat := pflag.String("output-format", "", "force the output container format (guessed from the URL by default)")
	inputAuthKey := pflag.String("input-auth-key", "", "a secret suffix to append to the input URL")
	outputAuthKey := pflag.String("output-auth-key", "", "a secret suffix to append to the output URL")
	netPprofAddr := pflag.String("net-pprof-listen-addr", "", "an address to listen for incoming net/pprof connections")
	pflag.Parse()
	if len(pflag.Args()) != 2 {
		pflag.Usage()
		os.Exit(1)
	}

	l := logrus.Default().WithLevel(loggerLevel)
	ctx := logger.CtxWithLogger(context.Background(), l)
	ctx, cancelFn := context.WithCancel(ctx)
	defer cancelFn()
	logger.Default = func() logger.Logger {
		return l
	}
	defer belt.Flush(ctx)

	if *netPprofAddr != "" {
		observability.Go(ctx, func(ctx context.Context) { l.Error(http.ListenAndServe(*netPprofAddr, nil)) })
	}

	fromURL := pflag.Arg(0)
	toURL := pflag.Arg(1)

	astiav.SetLogLevel(avconv.LogLevelToAstiav(l.Level()))
	astiav.SetLogCallback(func(c astiav.Classer, level astiav.LogLevel, fmt, msg string) {
		var cs string
		if c != nil {
			if cl := c.Class(); cl != nil {
				cs = " - class: " + cl.String()
			}
		}
		l.Logf(
			avconv.LogLevelFromAstiav(level),
			"%s%s",
			strings.TrimSpace(msg), cs,
		)
	})

	cfg := avtransformer.DefaultConfig()
	if *configPath != "" {
		f, err := os.Open(*configPath)
		if err != nil {
			l.Fatal(err)
		}
		cfg, err = avtransformer.LoadConfig(f)
		f.Close()
		if err != nil {
			l.Fatal(err)
		}
	}

	// no codec factories are available here, so only the tracks which
	// need no re-encoding can be transformed
	transformer, err := avtransformer.New(ctx, cfg, avtransformer.Dependencies{
		Listener:              listener{logger: l},
		AudioResamplerFactory: audiolibav.NewResampler,
	})
	if err != nil {
		l.Fatal(err)
	}
	defer transformer.Release(ctx)

	l.Debugf("opening '%s' as the output...", toURL)
	backend, err := muxerlibav.New(ctx, toURL, muxerlibav.Config{
		FormatName: *outputFormat,
		AuthKey:    secret.New(*outputAuthKey),
	})
	if err != nil {
		l.Fatal(err)
	}

	src := sourcelibav.New(fromURL, sourcelibav.Config{
		FormatName: *inputFormat,
		AuthKey:    secret.New(*inputAuthKey),
	})
	if err := transformer.Start(ctx, src, backend); err != nil {
		l.Fatal(err)
	}

	errCh := make(chan error, 1)
	observability.Go(ctx, func(ctx context.Context) {
		defer cancelFn()
		_, err := transformer.Wait(ctx)
		errCh <- err
	})

	t := time.NewTicker(time.Second)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			if err := <-errCh; err != nil {
				l.Fatal(err)
			}
			return
		case <-t.C:
			state, percent := transformer.Progress()
			if state == avtransformer.ProgressStateAvailable {
				fmt.Printf("progress: %d%%\n", percent)
			}
		}
	}
}
