package app

import (
	"context"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/relabs-tech/hand_rehab/internal/config"
	"github.com/relabs-tech/hand_rehab/internal/imu"
	"github.com/relabs-tech/hand_rehab/internal/logging"
	"github.com/relabs-tech/hand_rehab/internal/samplelog"
	"github.com/relabs-tech/hand_rehab/internal/source"
)

// RunConsole prints raw device updates and resolved samples until ctx is
// cancelled.
func RunConsole(ctx context.Context, out io.Writer) error {
	cfg := config.Get()
	log, err := logging.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	return runConsole(ctx, cfg, out, log)
}

func runConsole(ctx context.Context, cfg *config.Config, out io.Writer, log logrus.FieldLogger) error {
	raw := source.NewIMUSubscription(cfg.TopicIMU, cfg.UpdateQueueSize, logging.Component(log, "console"))
	subs := []source.Attacher{raw}

	// resolved samples are only republished when TOPIC_SAMPLES is set
	samples := make(chan samplelog.Sample, cfg.UpdateQueueSize)
	if cfg.TopicSamples != "" {
		subs = append(subs, &source.SampleSubscription{
			Topic: cfg.TopicSamples,
			Handler: func(s samplelog.Sample) {
				select {
				case samples <- s:
				case <-ctx.Done():
				}
			},
			Log: logging.Component(log, "console"),
		})
	}

	client, err := source.Connect(source.ClientOptions{
		Broker:   cfg.MQTTBroker,
		ClientID: cfg.MQTTClientIDConsole,
	}, log, subs...)
	if err != nil {
		raw.Close()
		return err
	}
	defer func() {
		raw.Close()
		source.Disconnect(client)
		log.Info("console: shutting down")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case u := <-raw.Updates():
			printUpdate(out, u)
		case s := <-samples:
			fmt.Fprintf(out,
				"[SAMPLE] session=%d mode=%d rep=%3d angle=%8.3f  %s\n",
				s.SessionID, s.Mode, s.RepNumber, s.AngleValue, s.Timestamp.Format(samplelog.TimestampLayout),
			)
		}
	}
}

func printUpdate(out io.Writer, u imu.RawUpdate) {
	if u.Scalar != nil {
		fmt.Fprintf(out, "[IMU   ] %s=%g\n", u.Key(), *u.Scalar)
		return
	}
	rec := u.Record
	field := func(v *float64) string {
		if v == nil {
			return "-"
		}
		return fmt.Sprintf("%g", *v)
	}
	fmt.Fprintf(out, "[IMU   ] sessionID=%s mode=%s y=%s z=%s\n",
		field(rec.SessionID), field(rec.Mode), field(rec.Y), field(rec.Z))
}
