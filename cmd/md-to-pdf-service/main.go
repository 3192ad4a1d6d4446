// This file orchestrates the md-to-pdf service, initializing and running the NATS
// worker.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/book-expert/configurator"
	"github.com/book-expert/events"
	"github.com/book-expert/logger"

	"github.com/book-expert/md-to-pdf-service/internal/mdrender"
)

// Config represents the overall configuration structure for the md-to-pdf-service.
type Config struct {
	NATS   NATSConfig   `toml:"nats"`
	Paths  PathsConfig  `toml:"paths"`
	Render RenderConfig `toml:"render"`
}

// PathsConfig holds common path configurations.
type PathsConfig struct {
	BaseLogsDir string `toml:"base_logs_dir"`
}

// RenderConfig selects the PDF engine used for conversions.
type RenderConfig struct {
	Engine string `toml:"engine"`
}

// NATSConfig holds NATS-specific configuration for the md-to-pdf-service.
type NATSConfig struct {
	URL                       string `toml:"url"`
	MarkdownStreamName        string `toml:"markdown_stream_name"`
	MarkdownConsumerName      string `toml:"markdown_consumer_name"`
	MarkdownCreatedSubject    string `toml:"markdown_created_subject"`
	MarkdownObjectStoreBucket string `toml:"markdown_object_store_bucket"`
	PDFStreamName             string `toml:"pdf_stream_name"`
	PDFCreatedSubject         string `toml:"pdf_created_subject"`
	PDFObjectStoreBucket      string `toml:"pdf_object_store_bucket"`
}

// MarkdownCreatedEvent announces a Markdown document uploaded for conversion.
// The optional CSSKey points at a stylesheet in the same object store; Title and
// Author seed the document metadata unless front matter overrides them.
//
// TODO: move MarkdownCreatedEvent into the shared events module once the schema
// settles.
type MarkdownCreatedEvent struct {
	Header      events.EventHeader `json:"header"`
	MarkdownKey string             `json:"markdown_key"`
	CSSKey      string             `json:"css_key,omitempty"`
	Title       string             `json:"title,omitempty"`
	Author      string             `json:"author,omitempty"`
}

// job represents the context for processing a single message.
type job struct {
	msg           jetstream.Msg
	jetStream     jetstream.JetStream
	markdownStore jetstream.ObjectStore
	pdfStore      jetstream.ObjectStore
	cfg           *Config
	appLogger     *logger.Logger
	event         *MarkdownCreatedEvent
	header        *events.EventHeader
	workDir       string
	localMDPath   string
	localCSSPath  string
	localPDFPath  string
}

const (
	natsFetchTimeout = 5 * time.Second
	ackWait          = 30 * time.Second

	// configURLEnvVar names the environment variable pointing at project.toml.
	configURLEnvVar = "PROJECT_TOML"
)

// ErrConfigURLNotSet is returned when the configuration location is missing from
// the environment.
var ErrConfigURLNotSet = errors.New(
	"PROJECT_TOML environment variable must point to the project configuration",
)

var errConversionFailed = errors.New("conversion failed")

// defaultStylesheet is used when an event carries no stylesheet of its own.
const defaultStylesheet = `body { font-family: serif; margin: 2em auto; max-width: 48em; line-height: 1.5; }
h1, h2, h3 { line-height: 1.2; }
code, pre { font-family: monospace; background: #f5f5f5; }
pre { padding: 0.75em; overflow-x: auto; }
`

// main is the entry point of the application.
func main() {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer stop()

	runErr := run(ctx)
	if runErr != nil {
		log.Printf("Fatal application error: %v", runErr)
		os.Exit(1)
	}

	log.Println("Application shut down gracefully.")
}

// run initializes all components and starts the message processing loop.
func run(ctx context.Context) error {
	cfg, appLogger, setupErr := setupConfigAndLogger()
	if setupErr != nil {
		return setupErr
	}
	defer func() {
		if closeErr := appLogger.Close(); closeErr != nil {
			log.Printf("Warning: failed to close app logger: %v", closeErr)
		}
	}()

	natsConnection, connErr := nats.Connect(cfg.NATS.URL)
	if connErr != nil {
		return fmt.Errorf("failed to connect to NATS: %w", connErr)
	}
	defer natsConnection.Close()
	appLogger.Info("Connected to NATS server at %s", natsConnection.ConnectedUrl())

	jetStream, jsErr := jetstream.New(natsConnection)
	if jsErr != nil {
		return fmt.Errorf("failed to create JetStream context: %w", jsErr)
	}

	jsSetupErr := setupJetStream(ctx, jetStream, cfg)
	if jsSetupErr != nil {
		return fmt.Errorf("failed to set up JetStream resources: %w", jsSetupErr)
	}

	consumer, consumerErr := jetStream.Consumer(
		ctx,
		cfg.NATS.MarkdownStreamName,
		cfg.NATS.MarkdownConsumerName,
	)
	if consumerErr != nil {
		return fmt.Errorf("failed to get consumer: %w", consumerErr)
	}

	appLogger.Info("Worker is running, listening for jobs on '%s'...", cfg.NATS.MarkdownCreatedSubject)
	return processMessages(ctx, consumer, jetStream, cfg, appLogger)
}

// setupConfigAndLogger loads configuration and sets up the main application logger.
func setupConfigAndLogger() (*Config, *logger.Logger, error) {
	configURL := os.Getenv(configURLEnvVar)
	if configURL == "" {
		return nil, nil, ErrConfigURLNotSet
	}

	var cfg Config
	tempLogger, tempLoggerErr := logger.New(os.TempDir(), "md-to-pdf-bootstrap.log")
	if tempLoggerErr != nil {
		return nil, nil, fmt.Errorf("failed to create bootstrap logger: %w", tempLoggerErr)
	}
	defer func() {
		if closeErr := tempLogger.Close(); closeErr != nil {
			log.Printf("Warning: failed to close temp logger: %v", closeErr)
		}
	}()

	loadErr := configurator.LoadFromURL(configURL, &cfg, tempLogger)
	if loadErr != nil {
		return nil, nil, fmt.Errorf(
			"failed to load configuration from URL %s: %w",
			configURL,
			loadErr,
		)
	}
	log.Printf("Configuration loaded from %s", configURL)

	appLogger, loggerErr := logger.New(cfg.Paths.BaseLogsDir, "md-to-pdf-service.log")
	if loggerErr != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", loggerErr)
	}

	return &cfg, appLogger, nil
}

// setupJetStream ensures all required NATS streams and object stores exist.
func setupJetStream(ctx context.Context, jetStream jetstream.JetStream, cfg *Config) error {
	streamCfg := newStreamConfig(cfg.NATS.MarkdownStreamName, cfg.NATS.MarkdownCreatedSubject)
	_, streamErr := jetStream.CreateStream(ctx, *streamCfg)
	if streamErr != nil && !errors.Is(streamErr, jetstream.ErrStreamNameAlreadyInUse) {
		return fmt.Errorf("failed to create Markdown stream: %w", streamErr)
	}

	consumerCfg := newConsumerConfig(cfg)
	stream, streamErr := jetStream.Stream(ctx, cfg.NATS.MarkdownStreamName)
	if streamErr != nil {
		return fmt.Errorf("failed to get Markdown stream handle: %w", streamErr)
	}
	_, consumerErr := stream.CreateOrUpdateConsumer(ctx, *consumerCfg)
	if consumerErr != nil {
		return fmt.Errorf("failed to create Markdown consumer: %w", consumerErr)
	}

	pdfStreamCfg := newStreamConfig(cfg.NATS.PDFStreamName, cfg.NATS.PDFCreatedSubject)
	_, pdfStreamErr := jetStream.CreateStream(ctx, *pdfStreamCfg)
	if pdfStreamErr != nil && !errors.Is(pdfStreamErr, jetstream.ErrStreamNameAlreadyInUse) {
		return fmt.Errorf("failed to create PDF stream: %w", pdfStreamErr)
	}

	buckets := []string{
		cfg.NATS.MarkdownObjectStoreBucket,
		cfg.NATS.PDFObjectStoreBucket,
	}
	for _, bucket := range buckets {
		objStoreCfg := newObjectStoreConfig(bucket)
		_, objStoreErr := jetStream.CreateObjectStore(ctx, *objStoreCfg)
		if objStoreErr != nil && !errors.Is(objStoreErr, jetstream.ErrBucketExists) {
			return fmt.Errorf("failed to create object store '%s': %w", bucket, objStoreErr)
		}
	}
	return nil
}

func newStreamConfig(name, subject string) *jetstream.StreamConfig {
	return &jetstream.StreamConfig{
		Name:                   name,
		Description:            "",
		Subjects:               []string{subject},
		Retention:              jetstream.WorkQueuePolicy,
		MaxConsumers:           -1,
		MaxMsgs:                -1,
		MaxBytes:               -1,
		Discard:                jetstream.DiscardOld,
		DiscardNewPerSubject:   false,
		MaxAge:                 0,
		MaxMsgsPerSubject:      -1,
		MaxMsgSize:             -1,
		Storage:                jetstream.FileStorage,
		Replicas:               1,
		NoAck:                  false,
		Duplicates:             0,
		Placement:              nil,
		Mirror:                 nil,
		Sources:                nil,
		Sealed:                 false,
		DenyDelete:             false,
		DenyPurge:              false,
		AllowRollup:            false,
		Compression:            jetstream.NoCompression,
		FirstSeq:               0,
		SubjectTransform:       nil,
		RePublish:              nil,
		AllowDirect:            false,
		MirrorDirect:           false,
		ConsumerLimits:         jetstream.StreamConsumerLimits{},
		Metadata:               nil,
		Template:               "",
		AllowMsgTTL:            false,
		SubjectDeleteMarkerTTL: 0,
	}
}

func newConsumerConfig(cfg *Config) *jetstream.ConsumerConfig {
	return &jetstream.ConsumerConfig{
		Durable:            cfg.NATS.MarkdownConsumerName,
		Name:               "",
		Description:        "",
		FilterSubject:      cfg.NATS.MarkdownCreatedSubject,
		AckPolicy:          jetstream.AckExplicitPolicy,
		AckWait:            ackWait,
		MaxDeliver:         -1,
		DeliverPolicy:      jetstream.DeliverAllPolicy,
		OptStartSeq:        0,
		OptStartTime:       nil,
		BackOff:            nil,
		ReplayPolicy:       jetstream.ReplayInstantPolicy,
		RateLimit:          0,
		SampleFrequency:    "",
		MaxWaiting:         0,
		MaxAckPending:      -1,
		HeadersOnly:        false,
		MaxRequestBatch:    0,
		MaxRequestExpires:  0,
		MaxRequestMaxBytes: 0,
		InactiveThreshold:  0,
		Replicas:           0,
		MemoryStorage:      false,
		FilterSubjects:     nil,
		Metadata:           nil,
		PauseUntil:         nil,
		PriorityPolicy:     0,
		PinnedTTL:          0,
		PriorityGroups:     nil,
		DeliverSubject:     "",
		DeliverGroup:       "",
		FlowControl:        false,
		IdleHeartbeat:      0,
	}
}

func newObjectStoreConfig(bucket string) *jetstream.ObjectStoreConfig {
	return &jetstream.ObjectStoreConfig{
		Bucket:      bucket,
		Description: "",
		TTL:         0,
		MaxBytes:    -1,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Placement:   nil,
		Compression: false,
		Metadata:    nil,
	}
}

// processMessages implements the core worker loop.
func processMessages(
	ctx context.Context,
	consumer jetstream.Consumer,
	jetStream jetstream.JetStream,
	cfg *Config,
	appLogger *logger.Logger,
) error {
	markdownStore, markdownStoreErr := jetStream.ObjectStore(ctx, cfg.NATS.MarkdownObjectStoreBucket)
	if markdownStoreErr != nil {
		return fmt.Errorf("failed to bind to Markdown object store: %w", markdownStoreErr)
	}
	pdfStore, pdfStoreErr := jetStream.ObjectStore(ctx, cfg.NATS.PDFObjectStoreBucket)
	if pdfStoreErr != nil {
		return fmt.Errorf("failed to bind to PDF object store: %w", pdfStoreErr)
	}

	for {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("context error in message loop: %w", ctxErr)
		}
		batch, fetchErr := consumer.Fetch(1, jetstream.FetchMaxWait(natsFetchTimeout))
		if fetchErr != nil {
			if errors.Is(fetchErr, context.Canceled) || errors.Is(fetchErr, nats.ErrTimeout) {
				continue
			}
			appLogger.Error("Error fetching messages: %v", fetchErr)
			continue
		}
		for msg := range batch.Messages() {
			handleMessage(ctx, msg, jetStream, markdownStore, pdfStore, cfg, appLogger)
		}
		if batchErr := batch.Error(); batchErr != nil {
			appLogger.Error("Error during message batch processing: %v", batchErr)
		}
	}
}

// handleMessage processes a single message.
func handleMessage(
	ctx context.Context, msg jetstream.Msg, jetStream jetstream.JetStream,
	markdownStore, pdfStore jetstream.ObjectStore, cfg *Config, appLogger *logger.Logger,
) {
	job, jobErr := newJob(msg, jetStream, markdownStore, pdfStore, cfg, appLogger)
	if jobErr != nil {
		appLogger.Error("Failed to create job: %v", jobErr)
		return
	}
	job.run(ctx)
}

// newJob creates a new job handler.
func newJob(
	msg jetstream.Msg, jetStream jetstream.JetStream, markdownStore, pdfStore jetstream.ObjectStore,
	cfg *Config, appLogger *logger.Logger,
) (*job, error) {
	event, unmarshalErr := unmarshalEvent(msg)
	if unmarshalErr != nil {
		return nil, unmarshalErr
	}
	return &job{
		msg:           msg,
		jetStream:     jetStream,
		markdownStore: markdownStore,
		pdfStore:      pdfStore,
		cfg:           cfg,
		appLogger:     appLogger,
		event:         event,
		header:        &event.Header,
		workDir:       "", // Will be set by setupWorkDir
		localMDPath:   "", // Will be set by setupWorkDir
		localCSSPath:  "", // Will be set by prepareStylesheet
		localPDFPath:  "", // Will be set by setupWorkDir
	}, nil
}

// unmarshalEvent unmarshals the MarkdownCreatedEvent from a message.
func unmarshalEvent(msg jetstream.Msg) (*MarkdownCreatedEvent, error) {
	var event MarkdownCreatedEvent
	if err := json.Unmarshal(msg.Data(), &event); err != nil {
		return nil, fmt.Errorf("failed to unmarshal MarkdownCreatedEvent: %w", err)
	}
	return &event, nil
}

// run executes the full lifecycle of a job.
func (j *job) run(ctx context.Context) {
	j.appLogger.Info(
		"Received job for WorkflowID [%s]: converting Markdown key '%s'",
		j.header.WorkflowID,
		j.event.MarkdownKey,
	)
	if progErr := j.msg.InProgress(); progErr != nil {
		j.appLogger.Warn("Failed to send InProgress update: %v", progErr)
	}

	dirErr := j.setupWorkDir()
	if dirErr != nil {
		j.appLogger.Error(
			"Error setting up work directory for job [%s]: %v",
			j.header.WorkflowID,
			dirErr,
		)
		j.nak(dirErr)
		return
	}
	defer j.cleanupWorkDir()

	if downloadErr := j.downloadMarkdown(ctx); downloadErr != nil {
		j.appLogger.Error(
			"Error downloading Markdown for job [%s]: %v",
			j.header.WorkflowID,
			downloadErr,
		)
		j.term(downloadErr)
		return
	}

	if stylesheetErr := j.prepareStylesheet(ctx); stylesheetErr != nil {
		j.appLogger.Error(
			"Error preparing stylesheet for job [%s]: %v",
			j.header.WorkflowID,
			stylesheetErr,
		)
		j.nak(stylesheetErr)
		return
	}

	if convertErr := j.convertMarkdown(ctx); convertErr != nil {
		j.appLogger.Error("Error converting Markdown for job [%s]: %v", j.header.WorkflowID, convertErr)
		j.nak(convertErr)
		return
	}

	if publishErr := j.publishPDF(ctx); publishErr != nil {
		j.appLogger.Error("Error publishing PDF for job [%s]: %v", j.header.WorkflowID, publishErr)
		j.nak(publishErr)
		return
	}

	j.ack()
}

func (j *job) setupWorkDir() error {
	workDir, err := os.MkdirTemp("", fmt.Sprintf("md-%s-", j.header.WorkflowID))
	if err != nil {
		return fmt.Errorf("failed to create temp dir: %w", err)
	}

	markdownName := filepath.Base(j.event.MarkdownKey)
	pdfName := strings.TrimSuffix(markdownName, filepath.Ext(markdownName)) + ".pdf"

	j.workDir = workDir
	j.localMDPath = filepath.Join(workDir, markdownName)
	j.localPDFPath = filepath.Join(workDir, pdfName)
	return nil
}

func (j *job) cleanupWorkDir() {
	if err := os.RemoveAll(j.workDir); err != nil {
		j.appLogger.Warn("Failed to remove temp directory '%s': %v", j.workDir, err)
	}
}

func (j *job) downloadMarkdown(ctx context.Context) error {
	err := j.markdownStore.GetFile(ctx, j.event.MarkdownKey, j.localMDPath)
	if err != nil {
		return fmt.Errorf("failed to get Markdown '%s' from object store: %w", j.event.MarkdownKey, err)
	}
	return nil
}

// prepareStylesheet downloads the stylesheet named by the event, or writes the
// built-in default next to the Markdown source.
func (j *job) prepareStylesheet(ctx context.Context) error {
	j.localCSSPath = filepath.Join(j.workDir, "style.css")

	if j.event.CSSKey != "" {
		getErr := j.markdownStore.GetFile(ctx, j.event.CSSKey, j.localCSSPath)
		if getErr != nil {
			return fmt.Errorf(
				"failed to get stylesheet '%s' from object store: %w",
				j.event.CSSKey,
				getErr,
			)
		}
		return nil
	}

	writeErr := os.WriteFile(j.localCSSPath, []byte(defaultStylesheet), 0o600)
	if writeErr != nil {
		return fmt.Errorf("failed to write default stylesheet: %w", writeErr)
	}
	return nil
}

// convertMarkdown runs the conversion pipeline for the downloaded document.
func (j *job) convertMarkdown(ctx context.Context) error {
	exeDir, exeErr := getExecutableDir()
	if exeErr != nil {
		return fmt.Errorf("could not determine executable directory: %w", exeErr)
	}

	opts := &mdrender.Options{
		SummaryOutput:     io.Discard,
		ProgressBarOutput: io.Discard,
		WorkDir:           j.workDir,
		CSSPath:           j.localCSSPath,
		Title:             j.event.Title,
		Author:            j.event.Author,
		Engine:            j.cfg.Render.Engine,
		ProjectRoot:       filepath.Dir(exeDir),
		Jobs:              nil,
	}
	processor := mdrender.NewProcessor(opts, j.appLogger)

	result := processor.ConvertOne(ctx, mdrender.Job{
		Source: j.localMDPath,
		Output: j.localPDFPath,
	})
	if result.Status != mdrender.StatusSucceeded {
		return fmt.Errorf("%w: %s", errConversionFailed, result.Reason)
	}
	return nil
}

// publishPDF uploads the produced PDF to the object store and publishes the event.
func (j *job) publishPDF(ctx context.Context) error {
	pdfName := filepath.Base(j.localPDFPath)
	objectName := fmt.Sprintf(
		"%s/%s/%s",
		j.header.TenantID,
		j.header.WorkflowID,
		pdfName,
	)

	if uploadErr := uploadFileToObjectStore(ctx, j.pdfStore, objectName, j.localPDFPath); uploadErr != nil {
		return fmt.Errorf("failed to upload '%s': %w", objectName, uploadErr)
	}
	j.appLogger.Info("Job [%s]: Uploaded '%s'", j.header.WorkflowID, objectName)

	publishEventErr := j.publishPDFCreatedEvent(ctx, objectName)
	if publishEventErr != nil {
		return fmt.Errorf("failed to publish event for '%s': %w", objectName, publishEventErr)
	}
	j.appLogger.Info("Job [%s]: Published event for '%s'", j.header.WorkflowID, objectName)
	return nil
}

// publishPDFCreatedEvent marshals and publishes a PDFCreatedEvent.
func (j *job) publishPDFCreatedEvent(ctx context.Context, pdfKey string) error {
	pdfEvent := events.PDFCreatedEvent{
		Header: events.EventHeader{
			WorkflowID: j.header.WorkflowID,
			UserID:     j.header.UserID,
			TenantID:   j.header.TenantID,
			EventID:    uuid.New().String(),
			Timestamp:  time.Now(),
		},
		PDFKey: pdfKey,
	}
	eventJSON, marshalErr := json.Marshal(pdfEvent)
	if marshalErr != nil {
		return fmt.Errorf("failed to marshal PDFCreatedEvent: %w", marshalErr)
	}
	_, pubErr := j.jetStream.Publish(ctx, j.cfg.NATS.PDFCreatedSubject, eventJSON)
	if pubErr != nil {
		return fmt.Errorf("failed to publish PDFCreatedEvent: %w", pubErr)
	}
	return nil
}

func (j *job) ack() {
	if err := j.msg.Ack(); err != nil {
		j.appLogger.Error("Job [%s]: Failed to acknowledge message: %v", j.header.WorkflowID, err)
	} else {
		j.appLogger.Success("Job [%s]: Processing complete. Acknowledged.", j.header.WorkflowID)
	}
}

func (j *job) nak(reason error) {
	j.appLogger.Error("NAK'ing message for job [%s]: %v", j.header.WorkflowID, reason)
	if err := j.msg.Nak(); err != nil {
		j.appLogger.Error("Failed to NAK message: %v", err)
	}
}

func (j *job) term(reason error) {
	j.appLogger.Error("Terminating message for job [%s]: %v", j.header.WorkflowID, reason)
	if err := j.msg.Term(); err != nil {
		j.appLogger.Error("Failed to TERM message: %v", err)
	}
}

func getExecutableDir() (string, error) {
	exePath, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("failed to get executable path: %w", err)
	}
	return filepath.Dir(exePath), nil
}

func uploadFileToObjectStore(
	ctx context.Context,
	store jetstream.ObjectStore,
	objectName, filePath string,
) error {
	file, openErr := os.Open(filePath)
	if openErr != nil {
		return fmt.Errorf("failed to open file for upload: %w", openErr)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			log.Printf("Warning: failed to close file '%s': %v", filePath, closeErr)
		}
	}()

	meta := jetstream.ObjectMeta{
		Name:        objectName,
		Description: "",
		Headers:     nil,
		Metadata:    nil,
	}
	_, putErr := store.Put(ctx, meta, file)
	if putErr != nil {
		return fmt.Errorf("failed to put file in object store: %w", putErr)
	}
	return nil
}
