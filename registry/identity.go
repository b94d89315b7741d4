package registry

import (
	"github.com/BurntSushi/toml"

	"github.com/dkgmesh/idkg/idkg"
	"github.com/dkgmesh/idkg/primitives"
)

// Identity is one node's persisted registry entry: its id and MEGa public
// key. Adapted from the teacher's common/key.Identity/PublicTOML pair,
// trimmed to what this engine's registry actually needs (no network
// address or TLS flag — transport is out of scope here).
type Identity struct {
	NodeID      idkg.NodeID
	AlgorithmID string
	Key         *primitives.Point
}

// identityTOML is Identity's TOML-serializable shadow: primitives.Point has
// no TOML encoding of its own, so the key is stored as its compressed byte
// encoding, following common/key.PublicTOML's pattern of a parallel
// marshaling-only struct.
type identityTOML struct {
	NodeID      string
	AlgorithmID string
	Key         []byte
}

// ToTOML converts i to its serializable shadow.
func (i *Identity) ToTOML() identityTOML {
	return identityTOML{
		NodeID:      string(i.NodeID),
		AlgorithmID: i.AlgorithmID,
		Key:         i.Key.Bytes(),
	}
}

// FromTOML reconstructs an Identity from its serializable shadow.
func (t identityTOML) FromTOML() (*Identity, error) {
	pt, err := primitives.PointFromBytes(t.Key)
	if err != nil {
		return nil, ErrMalformedPublicKey
	}
	return &Identity{NodeID: idkg.NodeID(t.NodeID), AlgorithmID: t.AlgorithmID, Key: pt}, nil
}

// WriteTOMLFile persists a set of identities to path, one [[identities]]
// table per node, mirroring common/key.Pair.TOML()'s file-per-node-set
// convention.
func WriteTOMLFile(path string, identities []*Identity) error {
	shadow := struct {
		Identities []identityTOML `toml:"identities"`
	}{}
	for _, id := range identities {
		shadow.Identities = append(shadow.Identities, id.ToTOML())
	}

	f, err := createFile(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := toml.NewEncoder(f)
	return enc.Encode(shadow)
}

// ReadTOMLFile loads the identity set written by WriteTOMLFile.
func ReadTOMLFile(path string) ([]*Identity, error) {
	var shadow struct {
		Identities []identityTOML `toml:"identities"`
	}
	if _, err := toml.DecodeFile(path, &shadow); err != nil {
		return nil, ErrTranscodingError
	}

	out := make([]*Identity, 0, len(shadow.Identities))
	for _, t := range shadow.Identities {
		id, err := t.FromTOML()
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}
