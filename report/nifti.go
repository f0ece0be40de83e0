package report

import (
	"fmt"

	"github.com/henghuang/nifti"
)

// ImageInfo is the geometry of a NIfTI image.
type ImageInfo struct {
	Dims   [4]int
	Voxels [3]float64
}

func (i ImageInfo) String() string {
	return fmt.Sprintf("%dx%dx%dx%d @ %gx%gx%g mm",
		i.Dims[0], i.Dims[1], i.Dims[2], i.Dims[3],
		i.Voxels[0], i.Voxels[1], i.Voxels[2])
}

// ReadImageInfo loads only the header of a .nii or .nii.gz file.
func ReadImageInfo(filename string) (ImageInfo, error) {
	var info ImageInfo

	img, err := safelyNiftiParse(filename, false)
	if err != nil {
		return info, err
	}

	hdr, err := safelyNiftiHeaderParse(filename)
	if err != nil {
		return info, err
	}

	dims := img.GetDims()
	for i := 0; i < 4 && i < len(dims); i++ {
		info.Dims[i] = int(dims[i])
	}
	for i := 0; i < 3; i++ {
		info.Voxels[i] = float64(hdr.Pixdim[i+1])
	}

	return info, nil
}

// safelyNiftiParse consumes panics emitted by the nifti library, which are
// inappropriate and must be captured in order to turn them into recoverable
// errors.
func safelyNiftiParse(filename string, rdata bool) (parsedData nifti.Nifti1Image, err error) {
	defer func() {
		if panicErr := recover(); panicErr != nil {
			err = fmt.Errorf("%s: %v", filename, panicErr)
		}
	}()

	parsedData.LoadImage(filename, rdata)

	return
}

func safelyNiftiHeaderParse(filename string) (parsedData nifti.Nifti1Header, err error) {
	defer func() {
		if panicErr := recover(); panicErr != nil {
			err = fmt.Errorf("%s: %v", filename, panicErr)
		}
	}()

	parsedData.LoadHeader(filename)

	return
}
