// Command idkgctl is an operator tool for exercising the IDKG protocol
// engine without a network: it spins up a requested number of in-process
// nodes, runs them through a full distributed key generation plus
// threshold-ECDSA signing round, and prints the resulting signature.
// Modeled on cmd/drand's single-binary, urfave/cli/v2 command structure.
package main

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"os"

	"github.com/jonboulle/clockwork"
	"github.com/urfave/cli/v2"

	"github.com/dkgmesh/idkg/common/log"
	"github.com/dkgmesh/idkg/common/scheme"
	"github.com/dkgmesh/idkg/engine"
	"github.com/dkgmesh/idkg/idkg"
	"github.com/dkgmesh/idkg/keystore"
	"github.com/dkgmesh/idkg/metrics"
	"github.com/dkgmesh/idkg/multisig"
	"github.com/dkgmesh/idkg/primitives"
	"github.com/dkgmesh/idkg/registry"
)

// Automatically set through -ldflags.
var (
	version   = "dev"
	gitCommit = "none"
	buildDate = "unknown"
)

var nodesFlag = &cli.IntFlag{
	Name:  "nodes",
	Usage: "Number of nodes in the demo subnet.",
	Value: 4,
}

var messageFlag = &cli.StringFlag{
	Name:  "message",
	Usage: "Message to sign with the resulting threshold key.",
	Value: "hello idkg",
}

var subnetFlag = &cli.StringFlag{
	Name:  "subnet",
	Usage: "Subnet tag the demo transcripts are scoped under.",
	Value: "idkgctl-demo",
}

var verboseFlag = &cli.BoolFlag{
	Name:  "verbose",
	Usage: "Log at debug level.",
}

var metricsFlag = &cli.StringFlag{
	Name:  "metrics",
	Usage: "Launch a Prometheus metrics server at the given (host:)port alongside the demo.",
}

func main() {
	app := cli.NewApp()
	app.Name = "idkgctl"
	app.Version = version
	app.Usage = "operate and demo the IDKG protocol engine"

	cli.VersionPrinter = func(c *cli.Context) {
		fmt.Printf("idkgctl %v (date %v, commit %v)\n", version, buildDate, gitCommit)
	}

	app.Commands = []*cli.Command{
		{
			Name:  "demo",
			Usage: "Run a local multi-node DKG and threshold-ECDSA signing round.",
			Flags: []cli.Flag{nodesFlag, messageFlag, subnetFlag, verboseFlag, metricsFlag},
			Action: func(c *cli.Context) error {
				return demoCmd(c)
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger(c *cli.Context) log.Logger {
	level := log.InfoLevel
	if c.Bool(verboseFlag.Name) {
		level = log.DebugLevel
	}
	return log.New(nil, level, false)
}

// demoCmd builds n engines sharing one in-memory registry, runs each of
// them through create_dealing/create_transcript/verify_transcript/
// load_transcript for a key transcript and a full pre-signature quadruple,
// then signs and verifies one message.
func demoCmd(c *cli.Context) error {
	n := c.Int(nodesFlag.Name)
	if n < 4 {
		return fmt.Errorf("idkgctl: need at least 4 nodes to tolerate f=1 corrupt dealer, got %d", n)
	}
	subnetTag := c.String(subnetFlag.Name)
	logger := newLogger(c)

	if addr := c.String(metricsFlag.Name); addr != "" {
		if lis := metrics.Start(logger, addr); lis != nil {
			defer lis.Close()
		}
	}

	engines, err := newDemoEngines(n, logger)
	if err != nil {
		return err
	}
	defer func() {
		for _, e := range engines {
			e.Store.Close()
		}
	}()

	var counter uint64
	ids := idsOf(engines)
	newParams := func(op idkg.OperationType) (*idkg.TranscriptParams, error) {
		counter++
		return idkg.NewTranscriptParams(idkg.NewTranscriptId(subnetTag, counter), 1, scheme.DefaultAlgorithmId, ids, ids, op)
	}
	seedFor := func(label string) [32]byte {
		return sha256.Sum256([]byte(subnetTag + "/" + label))
	}

	keyParams, err := newParams(idkg.OperationType{Kind: idkg.OpRandom})
	if err != nil {
		return err
	}
	keyTranscript, err := runTranscript(engines, keyParams, seedFor("key"))
	if err != nil {
		return fmt.Errorf("key transcript: %w", err)
	}
	logger.Infow("key transcript ready", "transcript_id", keyTranscript.TranscriptId.String())

	lambdaParams, err := newParams(idkg.OperationType{Kind: idkg.OpRandom})
	if err != nil {
		return err
	}
	lambdaTranscript, err := runTranscript(engines, lambdaParams, seedFor("lambda"))
	if err != nil {
		return fmt.Errorf("lambda transcript: %w", err)
	}

	kappaSeedParams, err := newParams(idkg.OperationType{Kind: idkg.OpRandom})
	if err != nil {
		return err
	}
	kappaSeedTranscript, err := runTranscript(engines, kappaSeedParams, seedFor("kappa-seed"))
	if err != nil {
		return fmt.Errorf("kappa seed transcript: %w", err)
	}

	kappaParams, err := newParams(idkg.OperationType{Kind: idkg.OpReshareOfUnmasked, Prev: kappaSeedTranscript})
	if err != nil {
		return err
	}
	kappaTranscript, err := runTranscript(engines, kappaParams, seedFor("kappa"))
	if err != nil {
		return fmt.Errorf("kappa transcript: %w", err)
	}

	kappaTimesLambdaParams, err := newParams(idkg.OperationType{Kind: idkg.OpUnmaskedTimesMasked, Unmasked: kappaTranscript, Masked: lambdaTranscript})
	if err != nil {
		return err
	}
	kappaTimesLambdaTranscript, err := runTranscript(engines, kappaTimesLambdaParams, seedFor("kappa-times-lambda"))
	if err != nil {
		return fmt.Errorf("kappa*lambda transcript: %w", err)
	}

	keyTimesLambdaParams, err := newParams(idkg.OperationType{Kind: idkg.OpUnmaskedTimesMasked, Unmasked: keyTranscript, Masked: lambdaTranscript})
	if err != nil {
		return err
	}
	keyTimesLambdaTranscript, err := runTranscript(engines, keyTimesLambdaParams, seedFor("key-times-lambda"))
	if err != nil {
		return fmt.Errorf("key*lambda transcript: %w", err)
	}

	inputs := &idkg.ThresholdEcdsaSigInputs{
		HashedMessage: sha256.Sum256([]byte(c.String(messageFlag.Name))),
		KeyTranscript: keyTranscript,
		Quadruple: idkg.PreSignatureQuadruple{
			Kappa:            kappaTranscript,
			Lambda:           lambdaTranscript,
			KappaTimesLambda: kappaTimesLambdaTranscript,
			KeyTimesLambda:   keyTimesLambdaTranscript,
		},
	}

	threshold := idkg.CorruptionBound(len(keyTranscript.Receivers)) + 1
	shares := make(map[idkg.NodeID]idkg.SigShare, threshold)
	for i := 0; i < threshold; i++ {
		share, err := engines[i].SignShare(inputs)
		if err != nil {
			return fmt.Errorf("sign_share(%s): %w", engines[i].NodeID, err)
		}
		if err := engines[i].VerifySigShare(engines[i].NodeID, inputs, share); err != nil {
			return fmt.Errorf("verify_sig_share(%s): %w", engines[i].NodeID, err)
		}
		shares[engines[i].NodeID] = share
	}

	if err := engines[0].VerifySigShares(context.Background(), inputs, shares); err != nil {
		return fmt.Errorf("batch verify_sig_share: %w", err)
	}

	sig, err := engines[0].CombineSigShares(inputs, shares)
	if err != nil {
		return fmt.Errorf("combine_sig_shares: %w", err)
	}
	if err := engines[0].VerifyCombinedSig(inputs, sig); err != nil {
		return fmt.Errorf("verify_combined_sig: %w", err)
	}

	pub, err := engines[0].DerivePublicKey(keyTranscript, nil)
	if err != nil {
		return fmt.Errorf("derive_public_key: %w", err)
	}

	fmt.Printf("subnet:      %s (%d nodes)\n", subnetTag, n)
	fmt.Printf("public key:  %x\n", pub.Bytes())
	fmt.Printf("signature:   r=%x s=%x\n", sig.R, sig.S)
	return nil
}

// newDemoEngines builds n in-process participants, one Engine per node,
// sharing one in-memory registry.
func newDemoEngines(n int, logger log.Logger) ([]*engine.Engine, error) {
	reg, err := registry.NewMemoryRegistry(64)
	if err != nil {
		return nil, err
	}
	sch, err := scheme.GetSchemeByIDWithDefault(scheme.DefaultAlgorithmId)
	if err != nil {
		return nil, err
	}

	identities := make([]*registry.Identity, n)
	secrets := make([]*primitives.Scalar, n)
	ids := make([]idkg.NodeID, n)
	for i := 0; i < n; i++ {
		secret, err := primitives.RandomScalar(rand.Reader)
		if err != nil {
			return nil, err
		}
		id := idkg.NodeID(fmt.Sprintf("node-%d", i))
		secrets[i] = secret
		ids[i] = id
		identities[i] = &registry.Identity{
			NodeID:      id,
			AlgorithmID: string(scheme.DefaultAlgorithmId),
			Key:         primitives.MulBase(secret),
		}
	}
	reg.PublishVersion(1, identities)

	engines := make([]*engine.Engine, n)
	for i := 0; i < n; i++ {
		store, err := keystore.Open("")
		if err != nil {
			return nil, err
		}
		recorder := metrics.NewRecorder(clockwork.NewRealClock())
		engines[i] = engine.New(ids[i], secrets[i], reg, store, sch, logger, recorder)
	}
	return engines, nil
}

func idsOf(engines []*engine.Engine) []idkg.NodeID {
	out := make([]idkg.NodeID, len(engines))
	for i, e := range engines {
		out[i] = e.NodeID
	}
	return out
}

func dealingSigningPayload(d idkg.Dealing) []byte {
	return append([]byte(d.DealerID+"/"+d.TranscriptId.String()), d.InternalDealingRaw...)
}

// runTranscript deals, collects a quorum-signed set of dealings, assembles
// and verifies the transcript, then has every node load it, failing on the
// first complaint since this demo's nodes are all honest.
func runTranscript(engines []*engine.Engine, params *idkg.TranscriptParams, seed [32]byte) (*idkg.Transcript, error) {
	byID := make(map[idkg.NodeID]*engine.Engine, len(engines))
	for _, e := range engines {
		byID[e.NodeID] = e
	}

	dealings := make(map[idkg.NodeID]idkg.Dealing, len(params.Dealers))
	for _, dealerID := range params.Dealers {
		d, err := byID[dealerID].CreateDealing(params, seed)
		if err != nil {
			return nil, fmt.Errorf("create_dealing(%s): %w", dealerID, err)
		}
		dealings[dealerID] = d
	}

	if err := engines[0].VerifyDealingsPublic(context.Background(), params, dealings); err != nil {
		return nil, fmt.Errorf("verify_dealing_public: %w", err)
	}

	signedDealings := make(map[idkg.NodeID]idkg.SignedDealing, len(dealings))
	for dealerID, d := range dealings {
		payload := dealingSigningPayload(d)
		var individuals []multisig.IndividualSig
		var signers []idkg.NodeID
		for _, e := range engines {
			sig, err := multisig.SignMulti(rand.Reader, e.NodeID, e.Secret, payload)
			if err != nil {
				return nil, err
			}
			individuals = append(individuals, sig)
			signers = append(signers, e.NodeID)
		}
		combined := multisig.CombineMultiSigIndividuals(individuals)
		sigBytes, err := multisig.EncodeCombinedSig(combined)
		if err != nil {
			return nil, err
		}
		signedDealings[dealerID] = idkg.SignedDealing{Dealing: d, Signers: signers, Signature: sigBytes}
	}

	tr, err := engines[0].CreateTranscript(params, signedDealings)
	if err != nil {
		return nil, fmt.Errorf("create_transcript: %w", err)
	}
	for _, e := range engines {
		if err := e.VerifyTranscript(params, tr); err != nil {
			return nil, fmt.Errorf("verify_transcript(%s): %w", e.NodeID, err)
		}
	}
	for _, e := range engines {
		complaints, err := e.LoadTranscript(params, tr)
		if err != nil {
			return nil, fmt.Errorf("load_transcript(%s): %w", e.NodeID, err)
		}
		if len(complaints) > 0 {
			return nil, fmt.Errorf("load_transcript(%s): %d unexpected complaints in an honest demo run", e.NodeID, len(complaints))
		}
	}
	return tr, nil
}
