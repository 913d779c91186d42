package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/auroralab/aurora/internal/config"
	"github.com/auroralab/aurora/internal/speaker"
)

var enrollBackground bool

func init() {
	rootCmd.AddCommand(speakerCmd)
	speakerCmd.AddCommand(speakerEnrollCmd)
	speakerCmd.AddCommand(speakerVerifyCmd)
	speakerCmd.AddCommand(speakerStatusCmd)
	speakerEnrollCmd.Flags().BoolVar(&enrollBackground, "background", false, "Enroll samples as the background (negative) class")
}

var speakerCmd = &cobra.Command{
	Use:   "speaker",
	Short: "Voice profile operations",
	Long:  "Commands for enrolling and testing the speaker verification profile.",
}

var speakerEnrollCmd = &cobra.Command{
	Use:   "enroll <wav>...",
	Short: "Add voice samples to the enrolled profile",
	Long: "Extracts features from the WAV files, appends them to the accumulated\n" +
		"profile, and retrains the verification boundary. Enrollment is strictly\n" +
		"additive; prior samples are never discarded.",
	Args: cobra.MinimumNArgs(1),
	RunE: runSpeakerEnroll,
}

var speakerVerifyCmd = &cobra.Command{
	Use:   "verify <wav>",
	Short: "Score a voice sample against the enrolled profile",
	Args:  cobra.ExactArgs(1),
	RunE:  runSpeakerVerify,
}

var speakerStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show enrollment state",
	RunE:  runSpeakerStatus,
}

func openVerifier() (*speaker.Verifier, *speaker.ProfileStore, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, nil, err
	}
	store, err := speaker.OpenStore(cfg.Speaker.ProfilePath)
	if err != nil {
		return nil, nil, err
	}
	v, err := speaker.NewVerifier(store, speaker.Config{
		Threshold:        cfg.Speaker.Threshold,
		MinEnrollSamples: cfg.Speaker.MinEnrollSamples,
	})
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	return v, store, nil
}

func runSpeakerEnroll(cmd *cobra.Command, args []string) error {
	v, store, err := openVerifier()
	if err != nil {
		return err
	}
	defer store.Close()

	samples := make([]speaker.Sample, 0, len(args))
	for _, path := range args {
		s, err := speaker.ReadWAVFile(path)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		samples = append(samples, s)
	}

	if enrollBackground {
		if err := v.EnrollBackground(samples); err != nil {
			return err
		}
	} else {
		if err := v.Enroll(samples); err != nil {
			return err
		}
	}

	n, err := v.EnrolledSamples()
	if err != nil {
		return err
	}
	fmt.Printf("enrolled %d samples (%d total for the profile)\n", len(samples), n)
	return nil
}

func runSpeakerVerify(cmd *cobra.Command, args []string) error {
	v, store, err := openVerifier()
	if err != nil {
		return err
	}
	defer store.Close()

	sample, err := speaker.ReadWAVFile(args[0])
	if err != nil {
		return err
	}
	verdict, err := v.Verify(sample)
	if err != nil {
		return err
	}
	out, _ := json.MarshalIndent(verdict, "", "  ")
	fmt.Println(string(out))
	return nil
}

func runSpeakerStatus(cmd *cobra.Command, args []string) error {
	v, store, err := openVerifier()
	if err != nil {
		return err
	}
	defer store.Close()

	enrolled, err := v.EnrolledSamples()
	if err != nil {
		return err
	}
	status := map[string]any{
		"trained":          v.Trained(),
		"enrolled_samples": enrolled,
	}
	out, _ := json.MarshalIndent(status, "", "  ")
	fmt.Println(string(out))
	return nil
}
