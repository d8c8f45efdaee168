package utils_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/poanetwork/layer-bridge/utils"
)

func TestValidateL1Address(t *testing.T) {
	t.Parallel()

	for _, test := range []struct {
		Name    string
		Address string
		HRP     string
		Valid   bool
	}{
		{"valid", "tb1qgpqyqszqgpqyqszqgpqyqszqgpqyqszmtlsu7", "tb", true},
		{"wrong prefix", "tb1qgpqyqszqgpqyqszqgpqyqszqgpqyqszmtlsu7", "bc", false},
		{"bad checksum", "tb1qgpqyqszqgpqyqszqgpqyqszqgpqyqszmtlsu8", "tb", false},
		{"hex address", "0x00000000000000000000000000000000000000Aa", "tb", false},
		{"empty", "", "tb", false},
	} {
		test := test
		t.Run(test.Name, func(t *testing.T) {
			t.Parallel()
			err := utils.ValidateL1Address(test.Address, test.HRP)
			if test.Valid {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
			}
		})
	}
}

func TestValidateL2Address(t *testing.T) {
	t.Parallel()
	require.NoError(t, utils.ValidateL2Address("0x00000000000000000000000000000000000000Aa"))
	require.NoError(t, utils.ValidateL2Address("00000000000000000000000000000000000000aa"))
	require.Error(t, utils.ValidateL2Address("0x1234"))
	require.Error(t, utils.ValidateL2Address("tb1qgpqyqszqgpqyqszqgpqyqszqgpqyqszmtlsu7"))
}
