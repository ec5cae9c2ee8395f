package installers

import (
	"archive/tar"
	"compress/bzip2"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/arthur-debert/ozy/pkg/errors"
	"github.com/gabriel-vasile/mimetype"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/ulikunitz/xz"
)

// Compression MIME types recognised for tarballs
const (
	mimeGzip  = "application/gzip"
	mimeBzip2 = "application/x-bzip2"
	mimeXz    = "application/x-xz"
)

// openDecompressed sniffs the compression of path from its content and
// returns a reader over the decompressed stream.
func openDecompressed(path string) (io.Reader, io.Closer, error) {
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return nil, nil, errors.Wrapf(err, errors.ErrIO, "unable to determine archive compression type from file %s", path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.Wrapf(err, errors.ErrIO, "while opening %s", path)
	}

	var r io.Reader
	switch {
	case mtype.Is(mimeGzip):
		gz, gerr := gzip.NewReader(f)
		if gerr != nil {
			_ = f.Close()
			return nil, nil, errors.Wrap(gerr, errors.ErrInstall, "corrupt gzip stream")
		}
		r = gz
	case mtype.Is(mimeBzip2):
		r = bzip2.NewReader(f)
	case mtype.Is(mimeXz):
		xzr, xerr := xz.NewReader(f)
		if xerr != nil {
			_ = f.Close()
			return nil, nil, errors.Wrap(xerr, errors.ErrInstall, "corrupt xz stream")
		}
		r = xzr
	default:
		_ = f.Close()
		return nil, nil, errors.Newf(errors.ErrInstall, "unsupported archive compression type %s", mtype.String()).
			WithDetail("mime", mtype.String())
	}
	return r, f, nil
}

// extractTarball unpacks a gzip, bzip2 or xz compressed tarball into dir
func extractTarball(path, dir string) error {
	r, closer, err := openDecompressed(path)
	if err != nil {
		return err
	}
	defer func() { _ = closer.Close() }()

	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, errors.ErrInstall, "while reading tar archive")
		}

		target, err := safeJoin(dir, hdr.Name)
		if err != nil {
			return err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, dirMode(hdr.FileInfo().Mode())); err != nil {
				return errors.Wrapf(err, errors.ErrIO, "while creating %s", target)
			}
		case tar.TypeReg:
			if err := writeFile(target, tr, hdr.FileInfo().Mode().Perm()); err != nil {
				return err
			}
		case tar.TypeSymlink:
			if err := makeSymlink(dir, hdr.Name, hdr.Linkname, target); err != nil {
				return err
			}
		case tar.TypeLink:
			source, err := safeJoin(dir, hdr.Linkname)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return errors.Wrapf(err, errors.ErrIO, "while creating %s", filepath.Dir(target))
			}
			_ = os.Remove(target)
			if err := os.Link(source, target); err != nil {
				return errors.Wrapf(err, errors.ErrIO, "while linking %s", target)
			}
		default:
			// Devices, fifos and pax metadata have no place in an app install
		}
	}
}

// extractZip unpacks every entry of a zip archive into dir, keeping paths
func extractZip(path, dir string) error {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return errors.Wrapf(err, errors.ErrInstall, "while opening zip archive %s", filepath.Base(path))
	}
	defer func() { _ = zr.Close() }()

	for _, f := range zr.File {
		target, err := safeJoin(dir, f.Name)
		if err != nil {
			return err
		}
		mode := f.Mode()

		switch {
		case mode.IsDir():
			if err := os.MkdirAll(target, dirMode(mode)); err != nil {
				return errors.Wrapf(err, errors.ErrIO, "while creating %s", target)
			}
		case mode&os.ModeSymlink != 0:
			linkname, err := readZipEntry(f)
			if err != nil {
				return err
			}
			if err := makeSymlink(dir, f.Name, string(linkname), target); err != nil {
				return err
			}
		default:
			if err := copyZipEntry(f, target, filePerm(mode)); err != nil {
				return err
			}
		}
	}
	return nil
}

// extractSingleZipEntry writes the only entry of a zip archive to dest as
// an executable. Archives with any other number of entries are rejected.
func extractSingleZipEntry(path, dest string) error {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return errors.Wrapf(err, errors.ErrInstall, "while opening zip archive %s", filepath.Base(path))
	}
	defer func() { _ = zr.Close() }()

	if len(zr.File) != 1 {
		names := make([]string, 0, len(zr.File))
		for _, f := range zr.File {
			names = append(names, f.Name)
		}
		return errors.Newf(errors.ErrInstall, "expected exactly one file in the zip archive, found %d (%s)",
			len(zr.File), strings.Join(names, ", "))
	}

	return copyZipEntry(zr.File[0], dest, 0755)
}

func copyZipEntry(f *zip.File, target string, perm os.FileMode) error {
	rc, err := f.Open()
	if err != nil {
		return errors.Wrapf(err, errors.ErrInstall, "while reading %s from zip archive", f.Name)
	}
	defer func() { _ = rc.Close() }()
	return writeFile(target, rc, perm)
}

func readZipEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrInstall, "while reading %s from zip archive", f.Name)
	}
	defer func() { _ = rc.Close() }()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrInstall, "while reading %s from zip archive", f.Name)
	}
	return data, nil
}

func writeFile(target string, r io.Reader, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return errors.Wrapf(err, errors.ErrIO, "while creating %s", filepath.Dir(target))
	}
	_ = os.Remove(target)
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return errors.Wrapf(err, errors.ErrIO, "while creating %s", target)
	}
	if _, err := io.Copy(out, r); err != nil {
		_ = out.Close()
		return errors.Wrapf(err, errors.ErrInstall, "while extracting %s", target)
	}
	if err := out.Close(); err != nil {
		return errors.Wrapf(err, errors.ErrIO, "while writing %s", target)
	}
	// OpenFile honours the umask; archives carry the intended bits
	return os.Chmod(target, perm)
}

// makeSymlink creates target as a link to linkname. Links that are
// absolute or that point above dir are refused, since a later entry
// written through them would land outside the install.
func makeSymlink(dir, name, linkname, target string) error {
	if filepath.IsAbs(linkname) {
		return errors.Newf(errors.ErrInstall, "archive entry %s links outside the install directory", name)
	}
	root, err := resolveExisting(dir)
	if err != nil {
		return errors.Wrapf(err, errors.ErrIO, "while resolving %s", dir)
	}
	parent, err := resolveExisting(filepath.Dir(target))
	if err != nil {
		return errors.Wrapf(err, errors.ErrIO, "while resolving %s", filepath.Dir(target))
	}
	if !within(root, filepath.Join(parent, linkname)) {
		return errors.Newf(errors.ErrInstall, "archive entry %s links outside the install directory", name)
	}

	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return errors.Wrapf(err, errors.ErrIO, "while creating %s", filepath.Dir(target))
	}
	_ = os.Remove(target)
	if err := os.Symlink(linkname, target); err != nil {
		return errors.Wrapf(err, errors.ErrIO, "while linking %s", target)
	}
	return nil
}

// safeJoin resolves an archive entry name under dir, rejecting entries
// that would escape it either by name or through a symlink extracted
// earlier in the same archive.
func safeJoin(dir, name string) (string, error) {
	target := filepath.Join(dir, name)
	if !within(dir, target) {
		return "", errors.Newf(errors.ErrInstall, "archive entry %s escapes the install directory", name)
	}

	root, err := resolveExisting(dir)
	if err != nil {
		return "", errors.Wrapf(err, errors.ErrIO, "while resolving %s", dir)
	}
	parent, err := resolveExisting(filepath.Dir(target))
	if err != nil {
		return "", errors.Wrapf(err, errors.ErrIO, "while resolving %s", filepath.Dir(target))
	}
	if !within(root, parent) {
		return "", errors.Newf(errors.ErrInstall, "archive entry %s escapes the install directory", name)
	}
	return target, nil
}

func within(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(os.PathSeparator))
}

// resolveExisting follows symlinks through the longest existing prefix of
// path and appends the missing remainder as is.
func resolveExisting(path string) (string, error) {
	p, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	var rest []string
	for {
		resolved, err := filepath.EvalSymlinks(p)
		if err == nil {
			return filepath.Join(append([]string{resolved}, rest...)...), nil
		}
		if !os.IsNotExist(err) {
			return "", err
		}
		parent := filepath.Dir(p)
		if parent == p {
			return filepath.Join(append([]string{p}, rest...)...), nil
		}
		rest = append([]string{filepath.Base(p)}, rest...)
		p = parent
	}
}

func dirMode(mode os.FileMode) os.FileMode {
	perm := mode.Perm() | 0700
	return perm
}

func filePerm(mode os.FileMode) os.FileMode {
	perm := mode.Perm()
	if perm == 0 {
		return 0644
	}
	return perm
}
