// SPDX-FileCopyrightText: 2025 The Karei Authors
// SPDX-License-Identifier: EUPL-1.2

package fshelper_test

import (
	"testing"

	"github.com/janderssonse/nvmw/internal/domain"
	"github.com/janderssonse/nvmw/internal/fshelper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		line string
		want []string
	}{
		{name: "bare", line: "DELETE_DIR /srv/nvmw/v20.11.1", want: []string{"DELETE_DIR", "/srv/nvmw/v20.11.1"}},
		{name: "extra spaces", line: "  CREATE_DIR   /tmp/x  ", want: []string{"CREATE_DIR", "/tmp/x"}},
		{name: "quoted", line: `CREATE_SYMLINK_DIR "C:\\Program Files\\nodejs" C:\nvm\v20.11.1`, want: []string{"CREATE_SYMLINK_DIR", `C:\Program Files\nodejs`, `C:\nvm\v20.11.1`}},
		{name: "empty quoted", line: `DELETE_FILE ""`, want: []string{"DELETE_FILE", ""}},
		{name: "command only", line: "CREATE_DIR", want: []string{"CREATE_DIR"}},
		{name: "blank", line: "   ", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := fshelper.Tokenize(tt.line)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTokenize_Malformed(t *testing.T) {
	t.Parallel()

	for _, line := range []string{`DELETE_FILE "unterminated`, `DELETE_FILE "a"b`} {
		_, err := fshelper.Tokenize(line)
		require.Error(t, err, line)
	}
}

func TestEncode(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "DELETE_DIR /srv/v1.0.0", fshelper.Encode(fshelper.CmdDeleteDir, "/srv/v1.0.0"))
	assert.Equal(t, `CREATE_SYMLINK_DIR "/opt/my node" /srv/v1.0.0`,
		fshelper.Encode(fshelper.CmdCreateSymlinkDir, "/opt/my node", "/srv/v1.0.0"))

	tokens, err := fshelper.Tokenize(fshelper.Encode(fshelper.CmdDeleteFile, `a "quoted" path`))
	require.NoError(t, err)
	assert.Equal(t, []string{fshelper.CmdDeleteFile, `a "quoted" path`}, tokens)
}

func TestDecode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		command  string
		response string
		kind     fshelper.Kind
		sentinel error
	}{
		{fshelper.CmdCreateDir, "CREATE_DIR_YES", fshelper.KindOk, nil},
		{fshelper.CmdCreateDir, "CREATE_DIR_EXISTS", fshelper.KindAlreadyExists, domain.ErrAlreadyExists},
		{fshelper.CmdDeleteDir, "DELETE_DIR_NO", fshelper.KindNotFound, domain.ErrPathMissing},
		{fshelper.CmdDeleteFile, "DELETE_FILE_NO", fshelper.KindNotFound, domain.ErrPathMissing},
		{fshelper.CmdCreateSymlinkDir, "CREATE_SYMLINK_DIR_NO", fshelper.KindInvalidRequest, domain.ErrHelper},
		{fshelper.CmdCreateSymlinkFile, "CREATE_SYMLINK_FILE_EXISTS", fshelper.KindAlreadyExists, domain.ErrAlreadyExists},
		{fshelper.CmdDeleteDir, "Unknown command", fshelper.KindInvalidRequest, domain.ErrHelper},
		{fshelper.CmdDeleteDir, "ERR_PERMISSION remove /x: permission denied", fshelper.KindPermissionDenied, domain.ErrPermissionDenied},
		{fshelper.CmdCreateDir, "ERR_NOT_FOUND mkdir: no such file", fshelper.KindNotFound, domain.ErrPathMissing},
		{fshelper.CmdCreateSymlinkDir, "ERR_EXISTS symlink: file exists", fshelper.KindAlreadyExists, domain.ErrAlreadyExists},
		{fshelper.CmdDeleteDir, "ERR_IO", fshelper.KindIoError, domain.ErrHelper},
		{fshelper.CmdDeleteDir, "CREATE_DIR_YES", fshelper.KindIoError, domain.ErrHelper},
	}

	for _, tt := range tests {
		t.Run(tt.response, func(t *testing.T) {
			t.Parallel()

			result := fshelper.Decode(tt.command, tt.response)
			assert.Equal(t, tt.kind, result.Kind)

			if tt.sentinel == nil {
				require.NoError(t, result.Err())
			} else {
				require.ErrorIs(t, result.Err(), tt.sentinel)
			}
		})
	}
}
