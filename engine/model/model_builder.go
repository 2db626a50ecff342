package model

// ModelBuilderOption is a functional option for configuring a Model via NewModel.
type ModelBuilderOption func(*model) error

// WithName is an option builder that sets the name of the Model. Defaults to the skeleton name.
//
// Parameters:
//   - name: the model identifier
//
// Returns:
//   - ModelBuilderOption: a function that applies the name option to a model
func WithName(name string) ModelBuilderOption {
	return func(m *model) error {
		m.name = name
		return nil
	}
}

// WithAssets is an option builder that adds sequences, montages or blend spaces to the Model.
//
// Parameters:
//   - assets: the assets to add, in order
//
// Returns:
//   - ModelBuilderOption: a function that adds the assets to a model
func WithAssets(assets ...Asset) ModelBuilderOption {
	return func(m *model) error {
		for _, a := range assets {
			if err := m.AddAsset(a); err != nil {
				return err
			}
		}
		return nil
	}
}

// WithSequences is WithAssets for a slice of sequences.
func WithSequences(sequences ...*Sequence) ModelBuilderOption {
	return func(m *model) error {
		for _, s := range sequences {
			if err := m.AddAsset(s); err != nil {
				return err
			}
		}
		return nil
	}
}
