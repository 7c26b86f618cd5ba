// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package assetbundles

import (
	"fmt"

	"github.com/bureau-foundation/downloadables/lib/downloadables"
)

// Result is the outcome of an operation.
type Result int

const (
	Success Result = iota
	ErrorHandleNotFound
	ErrorCouldntBeLoaded
	ErrorAssetNotFound
	ErrorNotASceneBundle
	ErrorNotLoaded
	ErrorDiskIOException
	ErrorDiskUnauthorizedAccess
	ErrorDownloadInternal
	ErrorNotDownloadable
	ErrorInternal
	Canceled
)

var resultNames = map[Result]string{
	Success:                     "Success",
	ErrorHandleNotFound:         "Error_AB_Handle_Not_Found",
	ErrorCouldntBeLoaded:        "Error_AB_Couldnt_Be_Loaded",
	ErrorAssetNotFound:          "Error_Asset_Not_Found_In_AB",
	ErrorNotASceneBundle:        "Error_AB_Is_Not_A_Scene_Bundle",
	ErrorNotLoaded:              "Error_AB_Is_Not_Loaded",
	ErrorDiskIOException:        "Error_AB_Disk_IOException",
	ErrorDiskUnauthorizedAccess: "Error_AB_Disk_UnauthorizedAccess",
	ErrorDownloadInternal:       "Error_AB_Download_Internal",
	ErrorNotDownloadable:        "Error_AB_Is_Not_Downloadable",
	ErrorInternal:               "Error_Internal",
	Canceled:                    "Canceled",
}

func (r Result) String() string {
	if name, ok := resultNames[r]; ok {
		return name
	}
	return fmt.Sprintf("Result(%d)", int(r))
}

// IsSuccess reports whether r is Success.
func (r Result) IsSuccess() bool { return r == Success }

// diskResult maps a request error that ended a download to a Result.
// Only disk failures end a bundle download; every other error is
// retried by re-requesting the id.
func diskResult(err *downloadables.Error) (Result, bool) {
	if err == nil {
		return Success, false
	}
	switch err.Type {
	case downloadables.ErrorTypeDiskIOException:
		return ErrorDiskIOException, true
	case downloadables.ErrorTypeDiskUnauthorizedAccess:
		return ErrorDiskUnauthorizedAccess, true
	}
	return Success, false
}
