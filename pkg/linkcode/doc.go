// Package linkcode generates short, human-shareable codes used as public lookup
// keys for links sent to a phone.
//
// The generator alone does not guarantee uniqueness. Unique confirms each
// candidate through a caller supplied claim function (typically a unique-index
// insert) and regenerates on collision, giving up after a bounded number of
// attempts with ErrCodeSpaceExhausted.
//
//	gen := linkcode.New()
//	code, err := gen.Unique(ctx, func(ctx context.Context, code string) error {
//	    if err := store.Insert(ctx, code); errors.Is(err, store.ErrDuplicate) {
//	        return linkcode.ErrCodeTaken
//	    } else if err != nil {
//	        return err
//	    }
//	    return nil
//	})
package linkcode
